// Package cache keeps the last successful fetch of each listing so a failed
// refresh can fall back to stale rows instead of an empty screen.
package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/Tiliavir/feedtrack/internal/model"
)

// Snapshot is a cached listing and the time it was fetched.
type Snapshot struct {
	FetchedAt time.Time             `json:"fetched_at"`
	Records   []model.FeedingRecord `json:"records"`
}

type RecordCache interface {
	Get(key string) (Snapshot, bool)
	Set(key string, snap Snapshot)
}

// freecache refuses entries above 1/1024 of its size, so snapshots are
// compressed and split into chunks below that limit.
type freeCache struct {
	cache     *freecache.Cache
	ttl       int
	chunkSize int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// New returns a freecache-backed RecordCache of sizeMB megabytes whose
// entries expire after ttl (0 = never). sizeMB <= 0 disables caching.
func New(sizeMB int, ttl time.Duration) (RecordCache, error) {
	if sizeMB <= 0 {
		return noopCache{}, nil
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	size := sizeMB * 1024 * 1024
	return &freeCache{
		cache:     freecache.NewCache(size),
		ttl:       int(ttl.Seconds()),
		chunkSize: size/1024 - 256,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

func chunkKey(key string, i int) []byte {
	return []byte(key + "#" + strconv.Itoa(i))
}

func (c *freeCache) Get(key string) (Snapshot, bool) {
	head, err := c.cache.Get([]byte(key))
	if err != nil {
		return Snapshot{}, false
	}
	n, err := strconv.Atoi(string(head))
	if err != nil {
		return Snapshot{}, false
	}

	var packed []byte
	for i := 0; i < n; i++ {
		part, err := c.cache.Get(chunkKey(key, i))
		if err != nil {
			// Evicted chunk.
			return Snapshot{}, false
		}
		packed = append(packed, part...)
	}

	data, err := c.decoder.DecodeAll(packed, nil)
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Set replaces the snapshot under key. Failures leave the key missing.
func (c *freeCache) Set(key string, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	packed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	c.cache.Del([]byte(key))
	n := 0
	for start := 0; start < len(packed); start += c.chunkSize {
		end := min(start+c.chunkSize, len(packed))
		if err := c.cache.Set(chunkKey(key, n), packed[start:end], c.ttl); err != nil {
			return
		}
		n++
	}
	_ = c.cache.Set([]byte(key), []byte(strconv.Itoa(n)), c.ttl)
}

type noopCache struct{}

func (noopCache) Get(string) (Snapshot, bool) { return Snapshot{}, false }
func (noopCache) Set(string, Snapshot)        {}
