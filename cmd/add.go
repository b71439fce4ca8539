package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tiliavir/feedtrack/internal/airtable"
	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/timecalc"
)

type addOptions struct {
	day    int
	at     string
	typ    string
	amount float64
	left   bool
	right  bool
	urine  bool
	bm     bool
	notes  string
}

var addOpts addOptions

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Log a feeding or diaper change",
	Long: `Log a new row. --day defaults to today's day number and --time to the
current time. Leave --type empty to log a diaper change only.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func init() {
	bindAddFlags(addCmd.Flags(), &addOpts)
}

func bindAddFlags(f *pflag.FlagSet, o *addOptions) {
	f.IntVar(&o.day, "day", 0, "Day number (default today)")
	f.StringVar(&o.at, "time", "", "Start time as HH:MM (default now)")
	f.StringVar(&o.typ, "type", "", "Feeding type, comma-separated for several")
	f.Float64Var(&o.amount, "amount", 0, "Amount in ml")
	f.BoolVar(&o.left, "left", false, "Fed on the left side")
	f.BoolVar(&o.right, "right", false, "Fed on the right side")
	f.BoolVar(&o.urine, "urine", false, "Wet diaper")
	f.BoolVar(&o.bm, "bm", false, "Bowel movement")
	f.StringVar(&o.notes, "notes", "", "Free-text notes")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t, err := newTracker(ctx, metrics.Nop())
	if err != nil {
		exitOn(err, 1)
	}

	rec, err := buildRecord(addOpts, cmd.Flags(), time.Now(), t.TodayIndex)
	if err != nil {
		exitOn(err, 1)
	}

	stored, err := t.Add(ctx, rec)
	switch {
	case errors.Is(err, airtable.ErrSourceUnavailable):
		exitOn(err, 2)
	case err != nil:
		exitOn(err, 1)
	}

	what := "diaper change"
	if stored.IsFeeding() {
		what = string(stored.FeedingType)
	}
	fmt.Fprintf(os.Stdout, "Logged %s on day %d at %s (%s)\n", what, stored.Day, stored.StartTime, stored.ID)
	return nil
}

// buildRecord turns the add flags into a record. Observations that were not
// passed stay nil so the row leaves those cells empty.
func buildRecord(o addOptions, flags *pflag.FlagSet, now time.Time, today func() (int, error)) (model.FeedingRecord, error) {
	rec := model.FeedingRecord{
		Day:         o.day,
		StartTime:   o.at,
		FeedingType: model.FeedingType(o.typ),
		Notes:       o.notes,
	}

	if !flags.Changed("day") {
		day, err := today()
		if err != nil {
			return model.FeedingRecord{}, err
		}
		rec.Day = day
	}
	if !flags.Changed("time") {
		rec.StartTime = timecalc.FormatClock(now)
	}
	if flags.Changed("amount") {
		amount := o.amount
		rec.AmountML = &amount
	}

	for name, dst := range map[string]**bool{
		"left":  &rec.Left,
		"right": &rec.Right,
		"urine": &rec.Urine,
		"bm":    &rec.BowelMovement,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return model.FeedingRecord{}, err
		}
		*dst = &v
	}
	return rec, nil
}
