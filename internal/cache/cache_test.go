package cache_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/feedtrack/internal/cache"
	"github.com/Tiliavir/feedtrack/internal/model"
)

func newCache(t *testing.T, sizeMB int, ttl time.Duration) cache.RecordCache {
	t.Helper()
	c, err := cache.New(sizeMB, ttl)
	require.NoError(t, err)
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newCache(t, 1, time.Hour)
	at := time.Date(2025, 7, 30, 12, 0, 0, 0, time.UTC)
	amount := 60.0

	_, ok := c.Get("history")
	assert.False(t, ok)

	c.Set("history", cache.Snapshot{FetchedAt: at, Records: []model.FeedingRecord{
		{ID: "r1", Day: 3, StartTime: "09:00", FeedingType: "Formula", AmountML: &amount},
	}})

	snap, ok := c.Get("history")
	require.True(t, ok)
	assert.True(t, snap.FetchedAt.Equal(at))
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "r1", snap.Records[0].ID)
	assert.Equal(t, model.FeedingType("Formula"), snap.Records[0].FeedingType)
	require.NotNil(t, snap.Records[0].AmountML)
	assert.InDelta(t, 60.0, *snap.Records[0].AmountML, 0.001)

	_, ok = c.Get("last")
	assert.False(t, ok, "keys are independent")
}

func TestCache_LargeSnapshotIsChunked(t *testing.T) {
	c := newCache(t, 4, 0)

	var recs []model.FeedingRecord
	for i := 0; i < 3000; i++ {
		recs = append(recs, model.FeedingRecord{
			ID:          fmt.Sprintf("rec%06d", i),
			Day:         i/12 + 1,
			StartTime:   fmt.Sprintf("%02d:%02d", i%24, (i*7)%60),
			FeedingType: "Formula",
			Notes:       fmt.Sprintf("note %d", i*7919),
		})
	}
	c.Set("history", cache.Snapshot{Records: recs})

	snap, ok := c.Get("history")
	require.True(t, ok)
	require.Len(t, snap.Records, len(recs))
	assert.Equal(t, recs[2999].ID, snap.Records[2999].ID)
	assert.Equal(t, recs[1234].Notes, snap.Records[1234].Notes)
}

func TestCache_Overwrite(t *testing.T) {
	c := newCache(t, 1, 0)
	c.Set("k", cache.Snapshot{Records: []model.FeedingRecord{{ID: "old"}}})
	c.Set("k", cache.Snapshot{Records: []model.FeedingRecord{{ID: "new"}}})

	snap, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", snap.Records[0].ID)
}

func TestCache_Disabled(t *testing.T) {
	c := newCache(t, 0, time.Hour)
	c.Set("k", cache.Snapshot{Records: []model.FeedingRecord{{ID: "x"}}})
	_, ok := c.Get("k")
	assert.False(t, ok)
}
