package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/feeding"
	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

var lastFormat string

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the last feeding and the next feeding windows",
	Args:  cobra.NoArgs,
	RunE:  runLast,
}

func init() {
	lastCmd.Flags().StringVar(&lastFormat, "format", "text", "Output format: text, json")
}

func runLast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t, err := newTracker(ctx, metrics.Nop())
	if err != nil {
		exitOn(err, 1)
	}

	last, err := t.LastFeeding(ctx)
	switch {
	case errors.Is(err, feeding.ErrNoQualifyingRecord):
		printNoFeeding(os.Stdout)
		return nil
	case errors.Is(err, feeding.ErrInvalidReferenceDate):
		exitOn(fmt.Errorf("%w (check `feedtrack day1`)", err), 1)
	case err != nil:
		exitOn(err, 2)
	}

	if lastFormat == "json" {
		data, err := json.MarshalIndent(last.Feeding, "", "  ")
		if err != nil {
			exitOn(fmt.Errorf("error encoding JSON: %w", err), 2)
		}
		fmt.Println(string(data))
		return nil
	}
	printLast(os.Stdout, last)
	return nil
}

func printNoFeeding(w io.Writer) {
	fmt.Fprintln(w, "No feeding data found.")
}

// printLast renders the summary card of the last feeding.
func printLast(w io.Writer, last tracker.Last) {
	f := last.Feeding
	fmt.Fprintln(w, "Last Feeding")
	fmt.Fprintf(w, "  %s\n", f.ElapsedLabel)
	fmt.Fprintf(w, "  (Day %d) %s", f.DayNumber, f.LastFeedingTime)
	if f.FeedingType != "" {
		fmt.Fprintf(w, "  %s", f.FeedingType)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  in 3h time: %s\n", f.ProjectedPlus3h)
	fmt.Fprintf(w, "  in 4h time: %s\n", f.ProjectedPlus4h)
	printFreshness(w, last.Freshness)
}

func printFreshness(w io.Writer, fr tracker.Freshness) {
	if fr.Stale {
		fmt.Fprintf(w, "Airtable unreachable, showing data from %s\n", fr.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
