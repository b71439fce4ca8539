package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

var (
	historyFormat string
	historyDays   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged rows grouped by day, newest day first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "md", "Output format: md, csv, json")
	historyCmd.Flags().IntVar(&historyDays, "days", 0, "Only show the N most recent days (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t, err := newTracker(ctx, metrics.Nop())
	if err != nil {
		exitOn(err, 1)
	}

	h, err := t.History(ctx)
	if err != nil {
		exitOn(err, 2)
	}
	h.Groups = limitDays(h.Groups, historyDays)

	switch historyFormat {
	case "json":
		data, err := json.MarshalIndent(h.Groups, "", "  ")
		if err != nil {
			exitOn(fmt.Errorf("error encoding JSON: %w", err), 2)
		}
		fmt.Println(string(data))
	case "csv":
		printHistoryCSV(os.Stdout, h.Groups)
	default: // md
		printHistory(os.Stdout, h)
	}
	return nil
}

func limitDays(groups []model.DayGroup, n int) []model.DayGroup {
	if n > 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}

// printHistory prints one block per day with a row per record.
func printHistory(w io.Writer, h tracker.History) {
	fmt.Fprintf(w, "Last updated: %s\n", h.UpdatedAt.Format("2006-01-02 15:04:05"))
	printFreshness(w, h.Freshness)

	if len(h.Groups) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	for _, g := range h.Groups {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Day %d\n", g.Day)
		fmt.Fprintln(w, "  Time   L  R  Urine  BM  Amount   Type")
		for _, r := range g.Records {
			line := fmt.Sprintf("  %-5s  %s  %s  %s      %s   %-7s  %s",
				r.StartTime,
				mark(r.Left),
				mark(r.Right),
				mark(r.Urine),
				mark(r.BowelMovement),
				amount(r.AmountML),
				chips(r.FeedingTypes()),
			)
			if r.Notes != "" {
				line += "  " + r.Notes
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}

func printHistoryCSV(w io.Writer, groups []model.DayGroup) {
	fmt.Fprintln(w, "day,start_time,feeding_type,amount_ml,left,right,urine,bowel_movement,notes")
	for _, g := range groups {
		for _, r := range g.Records {
			amountML := ""
			if r.AmountML != nil {
				amountML = strconv.FormatFloat(*r.AmountML, 'f', -1, 64)
			}
			fmt.Fprintf(w, "%d,%s,%s,%s,%t,%t,%t,%t,%s\n",
				g.Day,
				csvEscape(r.StartTime),
				csvEscape(string(r.FeedingType)),
				amountML,
				model.Flag(r.Left),
				model.Flag(r.Right),
				model.Flag(r.Urine),
				model.Flag(r.BowelMovement),
				csvEscape(r.Notes),
			)
		}
	}
}

func mark(b *bool) string {
	if model.Flag(b) {
		return "x"
	}
	return "-"
}

func amount(ml *float64) string {
	if ml == nil {
		return ""
	}
	return strconv.FormatFloat(*ml, 'f', -1, 64) + " ml"
}

// chips renders each feeding type label as [label].
func chips(labels []string) string {
	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("[" + l + "]")
	}
	return b.String()
}

// csvEscape quotes a field containing a comma, quote or line break and
// doubles any quotes inside it.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
