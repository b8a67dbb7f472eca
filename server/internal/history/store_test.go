package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/uvdose/uvdose/pkg/types"
)

func ok(v float64) types.Outcome { return types.Succeed(v, "", nil) }

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestAddAndGet(t *testing.T) {
	st := New(time.Hour, 10, nil)
	r := st.Add(context.Background(), "red", "RZ-104-11", ok(42.5))

	if r.ID == "" {
		t.Fatal("Add: empty ID")
	}
	got, found := st.Get(r.ID)
	if !found {
		t.Fatal("Get: expected record, got none")
	}
	if got.System != "RZ-104-11" || got.Outcome.Value() != 42.5 {
		t.Errorf("Get: got %+v", got)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(time.Hour, 10, nil)
	if _, found := st.Get("unknown"); found {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestList_NewestFirstAndLimited(t *testing.T) {
	st := New(time.Hour, 10, nil)
	st.newID = seqIDs()
	for i := 0; i < 4; i++ {
		st.Add(context.Background(), "red", "RZ-104-11", ok(float64(i)))
	}

	all := st.List(0)
	if len(all) != 4 {
		t.Fatalf("List(0): got %d records, want 4", len(all))
	}
	if all[0].ID != "id-4" || all[3].ID != "id-1" {
		t.Errorf("List order: got %s..%s, want id-4..id-1", all[0].ID, all[3].ID)
	}
	if two := st.List(2); len(two) != 2 || two[1].ID != "id-3" {
		t.Errorf("List(2): got %d records", len(two))
	}
}

func TestAdd_CapsAtLimit(t *testing.T) {
	st := New(time.Hour, 3, nil)
	st.newID = seqIDs()
	for i := 0; i < 5; i++ {
		st.Add(context.Background(), "pressure_drop", "RZ-104-11", ok(1))
	}
	if n := st.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
	if _, found := st.Get("id-2"); found {
		t.Error("id-2 should have been dropped")
	}
	if _, found := st.Get("id-5"); !found {
		t.Error("id-5 should be present")
	}
}

func TestList_ExcludesStale(t *testing.T) {
	base := time.Now()
	st := New(5*time.Minute, 10, nil)
	st.newID = seqIDs()

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Add(context.Background(), "red", "old", ok(1))
	st.now = fixedClock(base) // live
	st.Add(context.Background(), "red", "new", ok(1))

	entries := st.List(0)
	if len(entries) != 1 {
		t.Fatalf("List: got %d entries, want 1", len(entries))
	}
	if entries[0].System != "new" {
		t.Errorf("List[0].System: got %q, want new", entries[0].System)
	}
	if st.Count() != 2 {
		t.Errorf("Count: got %d, want 2 (stale included)", st.Count())
	}
}

func TestEvict(t *testing.T) {
	base := time.Now()
	st := New(5*time.Minute, 10, nil)
	st.newID = seqIDs()

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Add(context.Background(), "red", "a", ok(1))
	st.Add(context.Background(), "red", "b", ok(1))
	st.now = fixedClock(base)
	st.Add(context.Background(), "red", "c", ok(1))

	if n := st.Evict(base); n != 2 {
		t.Errorf("Evict: got %d removed, want 2", n)
	}
	if st.Count() != 1 {
		t.Errorf("Count after Evict: got %d, want 1", st.Count())
	}
	if _, found := st.Get("id-1"); found {
		t.Error("evicted record still indexed")
	}
}

func TestZeroTTLKeepsEverything(t *testing.T) {
	st := New(0, 10, nil)
	st.now = fixedClock(time.Unix(0, 0))
	st.Add(context.Background(), "red", "a", ok(1))
	st.now = time.Now
	if n := st.Evict(time.Now()); n != 0 {
		t.Errorf("Evict: got %d, want 0", n)
	}
	if len(st.List(0)) != 1 {
		t.Error("List: zero TTL record missing")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Minute, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingSink struct{ saved int }

func (f *failingSink) Save(context.Context, *Record) error {
	f.saved++
	return errors.New("disk full")
}
func (f *failingSink) Close() error { return nil }

func TestAdd_SinkFailureKeepsRecord(t *testing.T) {
	sink := &failingSink{}
	st := New(time.Hour, 10, sink)
	r := st.Add(context.Background(), "red", "RZ-104-11", ok(1))
	if sink.saved != 1 {
		t.Errorf("sink saves: got %d, want 1", sink.saved)
	}
	if _, found := st.Get(r.ID); !found {
		t.Error("record lost after sink failure")
	}
}

func TestConcurrentAdd(t *testing.T) {
	st := New(time.Hour, 1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Add(context.Background(), "red", "RZ-104-11", ok(1))
			st.List(5)
		}()
	}
	wg.Wait()
	if st.Count() != 50 {
		t.Errorf("Count: got %d, want 50", st.Count())
	}
}

func TestSQLiteSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.db")
	sink, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer sink.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := New(time.Hour, 10, sink)
	st.newID = seqIDs()
	for i := 0; i < 3; i++ {
		st.now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		st.Add(context.Background(), "red", "RZ-104-11", ok(float64(10+i)))
	}
	st.now = fixedClock(base.Add(3 * time.Minute))
	st.Add(context.Background(), "pressure_drop", "RZ-104-11",
		types.Fail(types.Failure{Kind: types.KindValidation, Message: "Flow rate must be greater than zero"}, types.Parameters{SystemType: "RZ-104-11"}))

	got, err := sink.Recent(context.Background(), base.Add(-time.Minute), 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent: got %d records, want 3", len(got))
	}
	if got[0].ID != "id-2" || got[2].ID != "id-4" {
		t.Errorf("Recent order: got %s..%s, want id-2..id-4", got[0].ID, got[2].ID)
	}
	if got[0].Outcome.Value() != 11 {
		t.Errorf("Outcome value: got %v, want 11", got[0].Outcome.Value())
	}
	if got[2].Outcome.Error == nil || got[2].Outcome.Error.Kind != types.KindValidation {
		t.Errorf("failure outcome not restored: %+v", got[2].Outcome)
	}
	if !got[1].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt: got %v", got[1].CreatedAt)
	}

	restored := New(0, 10, nil)
	restored.Restore(got)
	if restored.Count() != 3 {
		t.Errorf("Restore: got %d, want 3", restored.Count())
	}
}
