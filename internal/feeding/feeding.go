// Package feeding holds the pure logic behind the history and last-feeding
// views: grouping rows by day and deriving elapsed and projected times.
package feeding

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/timecalc"
)

var (
	ErrInvalidReferenceDate = errors.New("invalid reference date")
	ErrInvalidStartTime     = errors.New("invalid start time")
	ErrNoQualifyingRecord   = errors.New("no feeding data found")
)

// Aggregate groups records by day. Days are ordered most recent first and
// rows within a day by start time, earliest first. Rows sharing a start time
// keep their input order. The input slice is not modified.
func Aggregate(records []model.FeedingRecord) []model.DayGroup {
	groups := []model.DayGroup{}
	index := map[int]int{}
	for _, r := range records {
		i, ok := index[r.Day]
		if !ok {
			i = len(groups)
			index[r.Day] = i
			groups = append(groups, model.DayGroup{Day: r.Day})
		}
		groups[i].Records = append(groups[i].Records, r)
	}

	slices.SortFunc(groups, func(a, b model.DayGroup) int {
		return cmp.Compare(b.Day, a.Day)
	})
	for _, g := range groups {
		slices.SortStableFunc(g.Records, func(a, b model.FeedingRecord) int {
			return cmp.Compare(a.StartTime, b.StartTime)
		})
	}
	return groups
}

// Candidates returns the feeding rows of records, most recent first
// (day descending, then start time descending). Rows without a feeding type
// are dropped.
func Candidates(records []model.FeedingRecord) []model.FeedingRecord {
	out := make([]model.FeedingRecord, 0, len(records))
	for _, r := range records {
		if r.IsFeeding() {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.FeedingRecord) int {
		if c := cmp.Compare(b.Day, a.Day); c != 0 {
			return c
		}
		return cmp.Compare(b.StartTime, a.StartTime)
	})
	return out
}

// Derive computes the last-feeding summary for a single record.
//
// A feeding that lies after now is reported as ErrInvalidReferenceDate:
// with a sane clock this only happens when day 1 is set too late.
func Derive(rec model.FeedingRecord, referenceDate string, now time.Time) (model.LastFeeding, error) {
	ref, err := timecalc.ParseDate(referenceDate, now.Location())
	if err != nil {
		return model.LastFeeding{}, fmt.Errorf("%w: %v", ErrInvalidReferenceDate, err)
	}
	hour, minute, err := timecalc.ParseClock(rec.StartTime)
	if err != nil {
		return model.LastFeeding{}, fmt.Errorf("%w: record %s: %v", ErrInvalidStartTime, rec.ID, err)
	}

	at := timecalc.AbsoluteTimestamp(ref, rec.Day, hour, minute)
	elapsed := now.Sub(at)
	if elapsed < 0 {
		return model.LastFeeding{}, fmt.Errorf("%w: day %d %s is %s in the future",
			ErrInvalidReferenceDate, rec.Day, rec.StartTime, (-elapsed).Truncate(time.Minute))
	}

	return model.LastFeeding{
		LastFeedingTime: rec.StartTime,
		ElapsedLabel:    timecalc.FormatElapsed(elapsed),
		DayNumber:       rec.Day,
		ProjectedPlus3h: timecalc.FormatClock(timecalc.AddWallClock(at, 3*time.Hour)),
		ProjectedPlus4h: timecalc.FormatClock(timecalc.AddWallClock(at, 4*time.Hour)),
		FeedingType:     string(rec.FeedingType),
		At:              at,
		Elapsed:         elapsed,
	}, nil
}

// DeriveLastFeeding selects the most recent feeding in records and derives
// its summary. Rows with an unparseable start time are skipped in favour of
// the next candidate; a bad reference date fails the whole call.
func DeriveLastFeeding(records []model.FeedingRecord, referenceDate string, now time.Time) (model.LastFeeding, error) {
	for _, rec := range Candidates(records) {
		summary, err := Derive(rec, referenceDate, now)
		if errors.Is(err, ErrInvalidStartTime) {
			continue
		}
		return summary, err
	}
	return model.LastFeeding{}, ErrNoQualifyingRecord
}

// Summarize totals each day group.
func Summarize(groups []model.DayGroup) []model.DaySummary {
	out := make([]model.DaySummary, 0, len(groups))
	for _, g := range groups {
		s := model.DaySummary{Day: g.Day, Types: map[string]int{}}
		for _, r := range g.Records {
			if r.IsFeeding() {
				s.Feedings++
				for _, t := range r.FeedingTypes() {
					s.Types[t]++
				}
			}
			if r.AmountML != nil {
				s.TotalML += *r.AmountML
			}
			if model.Flag(r.Urine) {
				s.Urine++
			}
			if model.Flag(r.BowelMovement) {
				s.BowelMovements++
			}
		}
		out = append(out, s)
	}
	return out
}
