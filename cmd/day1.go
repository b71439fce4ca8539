package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/preference"
	"github.com/Tiliavir/feedtrack/internal/timecalc"
)

var day1Cmd = &cobra.Command{
	Use:   "day1",
	Short: "Show or change the calendar date of day 1",
	Args:  cobra.NoArgs,
	RunE:  runDay1Get,
}

var day1GetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the date of day 1",
	Args:  cobra.NoArgs,
	RunE:  runDay1Get,
}

var day1SetCmd = &cobra.Command{
	Use:   "set <YYYY-MM-DD>",
	Short: "Save a new date for day 1",
	Args:  cobra.ExactArgs(1),
	RunE:  runDay1Set,
}

func init() {
	day1Cmd.AddCommand(day1GetCmd)
	day1Cmd.AddCommand(day1SetCmd)
}

func runDay1Get(cmd *cobra.Command, args []string) error {
	store := preference.Open(cfg.Preferences.Path)
	date, err := store.ReferenceDate()
	if err != nil {
		log.Warn().Err(err).Str("path", store.Path()).Msg("could not read preferences, using default")
	}
	printDay1(os.Stdout, date, time.Now())
	return nil
}

func runDay1Set(cmd *cobra.Command, args []string) error {
	store := preference.Open(cfg.Preferences.Path)
	err := store.SetReferenceDate(args[0])
	switch {
	case errors.Is(err, preference.ErrInvalidDate):
		exitOn(err, 1)
	case err != nil:
		exitOn(err, 2)
	}
	log.Debug().Str("path", store.Path()).Str("date", args[0]).Msg("day 1 saved")
	printDay1(os.Stdout, args[0], time.Now())
	return nil
}

// printDay1 prints the date and, when it parses, which day number today is.
func printDay1(w io.Writer, date string, now time.Time) {
	fmt.Fprintf(w, "Day 1: %s\n", date)
	ref, err := timecalc.ParseDate(date, now.Location())
	if err != nil {
		return
	}
	if day := timecalc.DayIndex(ref, now); day >= 1 {
		fmt.Fprintf(w, "Today is day %d\n", day)
	} else {
		fmt.Fprintf(w, "Day 1 is %d day(s) away\n", 1-day)
	}
}
