// Package tracker runs the fetch, aggregate and derive pipeline behind every
// feedtrack view.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tiliavir/feedtrack/internal/airtable"
	"github.com/Tiliavir/feedtrack/internal/cache"
	"github.com/Tiliavir/feedtrack/internal/feeding"
	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/timecalc"
)

// MaxLastRecords is how many of the newest rows the last-feeding view reads
// before falling back to a full listing.
const MaxLastRecords = 5

const (
	viewHistory = "history"
	viewLast    = "last"
)

// Source is the remote feeding table.
type Source interface {
	ListFeedings(ctx context.Context, opts airtable.SelectOptions) ([]model.FeedingRecord, error)
	CreateFeeding(ctx context.Context, rec model.FeedingRecord) (model.FeedingRecord, error)
}

// Preferences supplies the day 1 date.
type Preferences interface {
	ReferenceDate() (string, error)
}

// Deps are the collaborators of a Tracker. Cache, Metrics and Now are
// optional.
type Deps struct {
	Source      Source
	Preferences Preferences
	Cache       cache.RecordCache
	Metrics     metrics.Recorder
	Log         zerolog.Logger
	Now         func() time.Time
}

type Tracker struct {
	source  Source
	prefs   Preferences
	cache   cache.RecordCache
	metrics metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time
}

func New(d Deps) *Tracker {
	t := &Tracker{
		source:  d.Source,
		prefs:   d.Preferences,
		cache:   d.Cache,
		metrics: d.Metrics,
		log:     d.Log,
		now:     d.Now,
	}
	if t.cache == nil {
		t.cache, _ = cache.New(0, 0)
	}
	if t.metrics == nil {
		t.metrics = metrics.Nop()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Freshness tells a view where its rows came from.
type Freshness struct {
	UpdatedAt time.Time
	// Stale is set when the source failed and the last good fetch was used.
	Stale bool
}

type History struct {
	Freshness
	Groups []model.DayGroup
}

type Last struct {
	Freshness
	Feeding model.LastFeeding
}

type Report struct {
	Freshness
	Days []model.DaySummary
}

func (t *Tracker) fetch(ctx context.Context, view string, opts airtable.SelectOptions) ([]model.FeedingRecord, Freshness, error) {
	start := t.now()
	recs, err := t.source.ListFeedings(ctx, opts)
	t.metrics.ObserveFetch(view, t.now().Sub(start), err)

	if err != nil {
		t.log.Error().Err(err).Str("view", view).Msg("fetch failed")
		if snap, ok := t.cache.Get(view); ok {
			t.metrics.IncStaleServed(view)
			t.log.Warn().Str("view", view).Time("fetched_at", snap.FetchedAt).Msg("serving last good fetch")
			return snap.Records, Freshness{UpdatedAt: snap.FetchedAt, Stale: true}, nil
		}
		return nil, Freshness{}, err
	}

	t.log.Debug().Str("view", view).Int("records", len(recs)).Msg("fetched")
	t.metrics.SetRecordsFetched(view, len(recs))
	t.cache.Set(view, cache.Snapshot{FetchedAt: start, Records: recs})
	return recs, Freshness{UpdatedAt: start}, nil
}

// History returns every row grouped by day, newest day first.
func (t *Tracker) History(ctx context.Context) (History, error) {
	recs, fresh, err := t.fetch(ctx, viewHistory, airtable.SelectOptions{Sort: airtable.NewestFirst})
	if err != nil {
		return History{}, err
	}
	return History{Freshness: fresh, Groups: feeding.Aggregate(recs)}, nil
}

// Report returns per-day totals, newest day first.
func (t *Tracker) Report(ctx context.Context) (Report, error) {
	h, err := t.History(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{Freshness: h.Freshness, Days: feeding.Summarize(h.Groups)}, nil
}

// ReferenceDate returns the saved day 1 date. A store failure is logged and
// the default is used.
func (t *Tracker) ReferenceDate() string {
	ref, err := t.prefs.ReferenceDate()
	if err != nil {
		t.log.Warn().Err(err).Str("using", ref).Msg("could not read day 1 date")
	}
	return ref
}

// LastFeeding summarizes the most recent feeding. It reads only the newest
// rows first and widens to the full table when none of them qualifies.
func (t *Tracker) LastFeeding(ctx context.Context) (Last, error) {
	ref := t.ReferenceDate()

	recs, fresh, err := t.fetch(ctx, viewLast, airtable.SelectOptions{Sort: airtable.NewestFirst, MaxRecords: MaxLastRecords})
	if err != nil {
		return Last{}, err
	}
	summary, err := feeding.DeriveLastFeeding(recs, ref, t.now())
	// Rows the source drops while mapping still count toward the cap, so the
	// capped read cannot tell whether older rows hold a feeding.
	if errors.Is(err, feeding.ErrNoQualifyingRecord) {
		t.log.Debug().Msg("no feeding among newest rows, reading full table")
		recs, fresh, err = t.fetch(ctx, viewHistory, airtable.SelectOptions{Sort: airtable.NewestFirst})
		if err != nil {
			return Last{}, err
		}
		summary, err = feeding.DeriveLastFeeding(recs, ref, t.now())
	}
	if err != nil {
		return Last{Freshness: fresh}, err
	}

	t.metrics.SetSinceLastFeeding(summary.Elapsed)
	return Last{Freshness: fresh, Feeding: summary}, nil
}

// TodayIndex returns the day index of the current date.
func (t *Tracker) TodayIndex() (int, error) {
	now := t.now()
	ref, err := timecalc.ParseDate(t.ReferenceDate(), now.Location())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", feeding.ErrInvalidReferenceDate, err)
	}
	return timecalc.DayIndex(ref, now), nil
}

// Add validates rec and stores it as a new row.
func (t *Tracker) Add(ctx context.Context, rec model.FeedingRecord) (model.FeedingRecord, error) {
	if rec.Day < 1 {
		return model.FeedingRecord{}, fmt.Errorf("day must be 1 or greater, got %d", rec.Day)
	}
	if _, _, err := timecalc.ParseClock(rec.StartTime); err != nil {
		return model.FeedingRecord{}, fmt.Errorf("%w: %v", feeding.ErrInvalidStartTime, err)
	}
	if rec.AmountML != nil && *rec.AmountML < 0 {
		return model.FeedingRecord{}, fmt.Errorf("amount must not be negative, got %v", *rec.AmountML)
	}

	stored, err := t.source.CreateFeeding(ctx, rec)
	if err != nil {
		t.log.Error().Err(err).Msg("create failed")
		return model.FeedingRecord{}, err
	}
	t.log.Info().Str("id", stored.ID).Int("day", stored.Day).Str("start", stored.StartTime).Msg("feeding logged")
	return stored, nil
}
