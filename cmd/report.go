package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

var (
	reportFormat string
	reportDays   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show per-day feeding and diaper totals",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Number of most recent days to include (0 = all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t, err := newTracker(ctx, metrics.Nop())
	if err != nil {
		exitOn(err, 1)
	}

	rep, err := t.Report(ctx)
	if err != nil {
		exitOn(err, 2)
	}
	if reportDays > 0 && len(rep.Days) > reportDays {
		rep.Days = rep.Days[:reportDays]
	}

	switch reportFormat {
	case "json":
		data, err := json.MarshalIndent(rep.Days, "", "  ")
		if err != nil {
			exitOn(fmt.Errorf("error encoding JSON: %w", err), 2)
		}
		fmt.Println(string(data))
	case "csv":
		printReportCSV(os.Stdout, rep.Days)
	default: // md
		printReport(os.Stdout, rep)
	}
	return nil
}

func printReport(w io.Writer, rep tracker.Report) {
	printFreshness(w, rep.Freshness)
	fmt.Fprintf(w, "%-6s%10s%10s%8s%6s  %s\n", "Day", "Feedings", "Total", "Urine", "BM", "Types")
	fmt.Fprintln(w, "--------------------------------------------------")

	var feedings, urine, bm int
	var total float64
	for _, d := range rep.Days {
		fmt.Fprintf(w, "%-6d%10d%10s%8d%6d  %s\n",
			d.Day, d.Feedings, formatML(d.TotalML), d.Urine, d.BowelMovements, typeCounts(d.Types))
		feedings += d.Feedings
		total += d.TotalML
		urine += d.Urine
		bm += d.BowelMovements
	}

	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%-6s%10d%10s%8d%6d\n", "Total", feedings, formatML(total), urine, bm)
}

func printReportCSV(w io.Writer, days []model.DaySummary) {
	fmt.Fprintln(w, "day,feedings,total_ml,urine,bowel_movements,types")
	for _, d := range days {
		fmt.Fprintf(w, "%d,%d,%s,%d,%d,%s\n",
			d.Day,
			d.Feedings,
			strconv.FormatFloat(d.TotalML, 'f', -1, 64),
			d.Urine,
			d.BowelMovements,
			csvEscape(typeCounts(d.Types)),
		)
	}
}

func formatML(ml float64) string {
	return strconv.FormatFloat(ml, 'f', -1, 64) + " ml"
}

// typeCounts renders a label count map as "Formula x3, Breast milk x1",
// most frequent first.
func typeCounts(types map[string]int) string {
	labels := make([]string, 0, len(types))
	for l := range types {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if types[labels[i]] != types[labels[j]] {
			return types[labels[i]] > types[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s x%d", l, types[l])
	}
	return strings.Join(parts, ", ")
}
