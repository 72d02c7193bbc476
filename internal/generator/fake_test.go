package generator

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChuLiYu/batchfeed/pkg/types"
)

var errCorrupt = errors.New("corrupt payload")

// memStore backs sampleSet containers. Each file holds a list of sample ids.
type memStore struct {
	mu      sync.Mutex
	files   map[string][]int
	shapes  map[string]types.Shapes // overrides the metadata derived from files
	corrupt map[string]int          // remaining attempts that fail to decode
	missing map[string]int          // remaining existence checks that fail
	delay   time.Duration
	reads   map[string]int // successful reads
}

func newMemStore() *memStore {
	return &memStore{
		files:   make(map[string][]int),
		shapes:  make(map[string]types.Shapes),
		corrupt: make(map[string]int),
		missing: make(map[string]int),
		reads:   make(map[string]int),
	}
}

// add stores a file holding n consecutive sample ids starting at first.
func (s *memStore) add(name string, first, n int) {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = first + i
	}
	s.files[name] = ids
}

func (s *memStore) exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[path] > 0 {
		s.missing[path]--
		return false
	}
	_, ok := s.files[path]
	return ok
}

func (s *memStore) readCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[path]
}

func (s *memStore) newSet() *sampleSet { return &sampleSet{store: s} }

type sampleSet struct {
	store *memStore
	ids   []int
}

func (c *sampleSet) ReadFromFile(path string) error {
	if c.store.delay > 0 {
		time.Sleep(c.store.delay)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.store.corrupt[path] > 0 {
		c.store.corrupt[path]--
		return errCorrupt
	}
	ids, ok := c.store.files[path]
	if !ok {
		return os.ErrNotExist
	}
	c.store.reads[path]++
	c.ids = slices.Clone(ids)
	return nil
}

func (c *sampleSet) ReadShapesFromFile(path string) (types.Shapes, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if s, ok := c.store.shapes[path]; ok {
		return s, nil
	}
	ids, ok := c.store.files[path]
	if !ok {
		return types.Shapes{}, os.ErrNotExist
	}
	return types.Shapes{
		Features: []types.Shape{{len(ids), 3}},
		Truth:    []types.Shape{{len(ids), 1}},
	}, nil
}

func (c *sampleSet) Append(other *sampleSet) error {
	c.ids = append(c.ids, other.ids...)
	return nil
}

func (c *sampleSet) Split(n int) *sampleSet {
	n = min(max(n, 0), len(c.ids))
	head := slices.Clone(c.ids[:n])
	c.ids = c.ids[n:]
	return &sampleSet{store: c.store, ids: head}
}

func (c *sampleSet) Clear() { c.ids = nil }

func (c *sampleSet) NElements() int { return len(c.ids) }

// countingRecorder counts instrumentation events.
type countingRecorder struct {
	fileReads    atomic.Int64
	retries      atomic.Int64
	failures     atomic.Int64
	batches      atomic.Int64
	samples      atomic.Int64
	epochs       atomic.Int64
	prefetchWait atomic.Int64
	buffered     atomic.Int64
}

func (r *countingRecorder) RecordFileRead(time.Duration, int) { r.fileReads.Add(1) }
func (r *countingRecorder) RecordReadRetry() { r.retries.Add(1) }
func (r *countingRecorder) RecordReadFailure() { r.failures.Add(1) }
func (r *countingRecorder) RecordPrefetchWait(time.Duration) { r.prefetchWait.Add(1) }
func (r *countingRecorder) SetBufferedSamples(n int) { r.buffered.Store(int64(n)) }
func (r *countingRecorder) RecordEpoch() { r.epochs.Add(1) }
func (r *countingRecorder) RecordBatch(samples int) {
	r.batches.Add(1)
	r.samples.Add(int64(samples))
}

func testConfig(store *memStore) Config {
	cfg := DefaultConfig()
	cfg.RetryInterval = time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.FileExists = store.exists
	return cfg
}

func newTestGenerator(t *testing.T, store *memStore, cfg Config) *Generator[*sampleSet] {
	t.Helper()
	g, err := New(store.newSet, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}
