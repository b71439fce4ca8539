package tracker_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/feedtrack/internal/airtable"
	"github.com/Tiliavir/feedtrack/internal/cache"
	"github.com/Tiliavir/feedtrack/internal/feeding"
	"github.com/Tiliavir/feedtrack/internal/model"
	"github.com/Tiliavir/feedtrack/internal/preference"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

// fakeSource serves rows newest first and honours MaxRecords.
type fakeSource struct {
	mu      sync.Mutex
	rows    []model.FeedingRecord
	err     error
	calls   []airtable.SelectOptions
	created []model.FeedingRecord
}

func (f *fakeSource) ListFeedings(_ context.Context, opts airtable.SelectOptions) ([]model.FeedingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	rows := append([]model.FeedingRecord(nil), f.rows...)
	if opts.MaxRecords > 0 && len(rows) > opts.MaxRecords {
		rows = rows[:opts.MaxRecords]
	}
	return rows, nil
}

func (f *fakeSource) CreateFeeding(_ context.Context, rec model.FeedingRecord) (model.FeedingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.FeedingRecord{}, f.err
	}
	rec.ID = "recNEW"
	f.created = append(f.created, rec)
	return rec, nil
}

type fakePrefs struct {
	date string
	err  error
}

func (p fakePrefs) ReferenceDate() (string, error) { return p.date, p.err }

var now = time.Date(2025, 7, 30, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, src *fakeSource) *tracker.Tracker {
	t.Helper()
	c, err := cache.New(1, time.Hour)
	require.NoError(t, err)
	return tracker.New(tracker.Deps{
		Source:      src,
		Preferences: fakePrefs{date: "2025-07-28"},
		Cache:       c,
		Log:         zerolog.Nop(),
		Now:         func() time.Time { return now },
	})
}

func r(id string, day int, start, typ string) model.FeedingRecord {
	return model.FeedingRecord{ID: id, Day: day, StartTime: start, FeedingType: model.FeedingType(typ)}
}

func TestHistory(t *testing.T) {
	src := &fakeSource{rows: []model.FeedingRecord{
		r("c", 3, "10:00", "Formula"),
		r("b", 3, "07:00", "Formula"),
		r("a", 2, "22:00", ""),
	}}
	tr := newTracker(t, src)

	h, err := tr.History(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Stale)
	assert.True(t, h.UpdatedAt.Equal(now))
	require.Len(t, h.Groups, 2)
	assert.Equal(t, 3, h.Groups[0].Day)
	assert.Equal(t, "b", h.Groups[0].Records[0].ID)
	assert.Equal(t, "c", h.Groups[0].Records[1].ID)

	require.Len(t, src.calls, 1)
	assert.Equal(t, airtable.NewestFirst, src.calls[0].Sort)
	assert.Zero(t, src.calls[0].MaxRecords)
}

func TestHistory_FallsBackToLastGoodFetch(t *testing.T) {
	src := &fakeSource{rows: []model.FeedingRecord{r("a", 1, "09:00", "Formula")}}
	tr := newTracker(t, src)

	_, err := tr.History(context.Background())
	require.NoError(t, err)

	src.err = airtable.ErrSourceUnavailable
	h, err := tr.History(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Stale)
	require.Len(t, h.Groups, 1)
	assert.Equal(t, "a", h.Groups[0].Records[0].ID)
}

func TestHistory_SourceDownWithoutCache(t *testing.T) {
	src := &fakeSource{err: airtable.ErrSourceUnavailable}
	tr := newTracker(t, src)

	_, err := tr.History(context.Background())
	assert.ErrorIs(t, err, airtable.ErrSourceUnavailable)
}

func TestLastFeeding(t *testing.T) {
	src := &fakeSource{rows: []model.FeedingRecord{
		r("diaper", 3, "11:00", ""),
		r("feed", 3, "09:30", "Breast milk"),
	}}
	tr := newTracker(t, src)

	last, err := tr.LastFeeding(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "09:30", last.Feeding.LastFeedingTime)
	assert.Equal(t, "2h 30m ago", last.Feeding.ElapsedLabel)
	assert.Equal(t, "12:30", last.Feeding.ProjectedPlus3h)
	assert.Equal(t, "13:30", last.Feeding.ProjectedPlus4h)
	assert.Equal(t, 3, last.Feeding.DayNumber)

	require.Len(t, src.calls, 1)
	assert.Equal(t, tracker.MaxLastRecords, src.calls[0].MaxRecords)
}

func TestLastFeeding_WidensWhenNewestRowsAreNotFeedings(t *testing.T) {
	src := &fakeSource{rows: []model.FeedingRecord{
		r("d1", 3, "11:50", ""),
		r("d2", 3, "11:40", ""),
		r("d3", 3, "11:30", ""),
		r("d4", 3, "11:20", ""),
		r("d5", 3, "11:10", ""),
		r("feed", 3, "08:00", "Formula"),
	}}
	tr := newTracker(t, src)

	last, err := tr.LastFeeding(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "08:00", last.Feeding.LastFeedingTime)
	require.Len(t, src.calls, 2)
	assert.Zero(t, src.calls[1].MaxRecords)
}

func TestLastFeeding_WidensWhenCappedRowsWereDropped(t *testing.T) {
	capped := `{"id":"noday","createdTime":"2025-07-30T11:55:00.000Z","fields":{"Start Time":"11:55","Urine":true}},` +
		`{"id":"u1","createdTime":"2025-07-30T11:50:00.000Z","fields":{"Day":3,"Start Time":"11:50","Urine":true}},` +
		`{"id":"u2","createdTime":"2025-07-30T11:40:00.000Z","fields":{"Day":3,"Start Time":"11:40","Urine":true}},` +
		`{"id":"u3","createdTime":"2025-07-30T11:30:00.000Z","fields":{"Day":3,"Start Time":"11:30","Urine":true}},` +
		`{"id":"u4","createdTime":"2025-07-30T11:20:00.000Z","fields":{"Day":3,"Start Time":"11:20","Urine":true}}`
	feed := `{"id":"feed","createdTime":"2025-07-30T08:00:00.000Z","fields":{"Day":3,"Start Time":"08:00","Feeding Type":["Formula"]}}`

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("maxRecords"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("maxRecords") != "" {
			fmt.Fprintf(w, `{"records":[%s]}`, capped)
			return
		}
		fmt.Fprintf(w, `{"records":[%s,%s]}`, capped, feed)
	}))
	defer srv.Close()

	client := airtable.NewClient(context.Background(), airtable.Options{
		BaseURL: srv.URL,
		BaseID:  "appTEST",
		APIKey:  "key",
		Table:   "Feeding Tracker",
	}, zerolog.Nop())
	tr := tracker.New(tracker.Deps{
		Source:      client,
		Preferences: fakePrefs{date: "2025-07-28"},
		Log:         zerolog.Nop(),
		Now:         func() time.Time { return now },
	})

	last, err := tr.LastFeeding(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "08:00", last.Feeding.LastFeedingTime)
	assert.Equal(t, "Formula", last.Feeding.FeedingType)
	assert.Equal(t, "4h 0m ago", last.Feeding.ElapsedLabel)
	assert.Equal(t, []string{"5", ""}, requests)
}

func TestLastFeeding_NoData(t *testing.T) {
	tr := newTracker(t, &fakeSource{rows: []model.FeedingRecord{r("d", 3, "11:00", "")}})

	_, err := tr.LastFeeding(context.Background())
	assert.ErrorIs(t, err, feeding.ErrNoQualifyingRecord)
}

func TestLastFeeding_UsesStoredReferenceDate(t *testing.T) {
	store := preference.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, store.SetReferenceDate("2025-07-29"))

	tr := tracker.New(tracker.Deps{
		Source:      &fakeSource{rows: []model.FeedingRecord{r("f", 1, "09:00", "Formula")}},
		Preferences: store,
		Log:         zerolog.Nop(),
		Now:         func() time.Time { return now },
	})

	last, err := tr.LastFeeding(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "27h 0m ago", last.Feeding.ElapsedLabel)
}

func TestReferenceDate_FallsBackOnStoreError(t *testing.T) {
	tr := tracker.New(tracker.Deps{
		Source:      &fakeSource{},
		Preferences: fakePrefs{date: preference.DefaultReferenceDate, err: errors.New("disk gone")},
		Log:         zerolog.Nop(),
	})
	assert.Equal(t, preference.DefaultReferenceDate, tr.ReferenceDate())
}

func TestTodayIndex(t *testing.T) {
	tr := newTracker(t, &fakeSource{})
	day, err := tr.TodayIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, day)
}

func TestReport(t *testing.T) {
	amount := 80.0
	src := &fakeSource{rows: []model.FeedingRecord{
		{ID: "x", Day: 2, StartTime: "10:00", FeedingType: "Formula", AmountML: &amount},
		{ID: "y", Day: 1, StartTime: "10:00", FeedingType: "Formula"},
	}}
	rep, err := newTracker(t, src).Report(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Days, 2)
	assert.Equal(t, 2, rep.Days[0].Day)
	assert.InDelta(t, 80.0, rep.Days[0].TotalML, 0.001)
}

func TestAdd(t *testing.T) {
	src := &fakeSource{}
	tr := newTracker(t, src)

	stored, err := tr.Add(context.Background(), r("", 3, "12:15", "Formula"))
	require.NoError(t, err)
	assert.Equal(t, "recNEW", stored.ID)
	require.Len(t, src.created, 1)

	_, err = tr.Add(context.Background(), r("", 0, "12:15", "Formula"))
	assert.Error(t, err)

	_, err = tr.Add(context.Background(), r("", 3, "noon", "Formula"))
	assert.ErrorIs(t, err, feeding.ErrInvalidStartTime)

	neg := -5.0
	bad := r("", 3, "12:15", "Formula")
	bad.AmountML = &neg
	_, err = tr.Add(context.Background(), bad)
	assert.Error(t, err)

	assert.Len(t, src.created, 1, "invalid rows never reach the source")
}
