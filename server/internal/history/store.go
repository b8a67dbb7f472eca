package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uvdose/uvdose/pkg/types"
)

// Record is one calculation served by the API.
type Record struct {
	ID        string        `json:"id"`
	Op        string        `json:"op"`
	System    string        `json:"system_type"`
	Outcome   types.Outcome `json:"outcome"`
	CreatedAt time.Time     `json:"created_at"`
}

// Sink persists records beyond the in-memory window.
type Sink interface {
	Save(ctx context.Context, r *Record) error
	Close() error
}

// Store is a thread-safe in-memory record store, ordered oldest first and
// capped at limit entries. A background goroutine (Run) periodically evicts
// records older than the configured TTL.
type Store struct {
	mu      sync.RWMutex
	records []*Record
	index   map[string]*Record
	ttl     time.Duration
	limit   int
	sink    Sink

	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// New creates a Store. A zero ttl keeps records until they fall off the
// limit. sink may be nil.
func New(ttl time.Duration, limit int, sink Sink) *Store {
	return &Store{
		index: make(map[string]*Record),
		ttl:   ttl,
		limit: limit,
		sink:  sink,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Add records an outcome and returns the stored Record. A sink failure is
// logged; the record is kept in memory either way.
func (s *Store) Add(ctx context.Context, op, system string, o types.Outcome) *Record {
	r := &Record{
		ID:        s.newID(),
		Op:        op,
		System:    system,
		Outcome:   o,
		CreatedAt: s.now().UTC(),
	}
	s.insert(r)
	if s.sink != nil {
		if err := s.sink.Save(ctx, r); err != nil {
			slog.Warn("history: persist failed", "id", r.ID, "err", err)
		}
	}
	return r
}

// Restore loads previously persisted records, oldest first, without
// writing them back to the sink.
func (s *Store) Restore(records []*Record) {
	for _, r := range records {
		s.insert(r)
	}
}

func (s *Store) insert(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	s.index[r.ID] = r
	if s.limit > 0 && len(s.records) > s.limit {
		drop := len(s.records) - s.limit
		for _, old := range s.records[:drop] {
			delete(s.index, old.ID)
		}
		s.records = append([]*Record(nil), s.records[drop:]...)
	}
}

// Get returns the record with the given ID. The record may be stale if the
// TTL has elapsed but it has not been evicted yet.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.index[id]
	return r, ok
}

// List returns up to n live records, newest first. n <= 0 means all.
func (s *Store) List(n int) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		r := s.records[i]
		if !s.live(r, s.now()) {
			break
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) live(r *Record, now time.Time) bool {
	return s.ttl <= 0 || r.CreatedAt.After(now.Add(-s.ttl))
}

// Count returns the number of records held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TTL returns the configured retention.
func (s *Store) TTL() time.Duration { return s.ttl }

// Evict removes records older than now minus TTL and returns how many were
// removed.
func (s *Store) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := 0
	for keep < len(s.records) && !s.live(s.records[keep], now) {
		delete(s.index, s.records[keep].ID)
		keep++
	}
	if keep > 0 {
		s.records = append([]*Record(nil), s.records[keep:]...)
	}
	return keep
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("history: evicted stale records", "count", n)
			}
		}
	}
}
