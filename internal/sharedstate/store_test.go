package sharedstate

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	rec := store.Load()
	if !rec.IsZero() {
		t.Errorf("Load() on missing file = %+v, want zero record", rec)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	rec := store.Load()
	if !rec.IsZero() {
		t.Errorf("Load() on corrupt file = %+v, want zero record", rec)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	in := Record{
		ActiveSessionID: StringPtr("s1"),
		StartDate:       Int64Ptr(1700000000),
		ElapsedSeconds:  Float64Ptr(12.5),
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out := store.Load()
	if id, ok := out.Active(); !ok || id != "s1" {
		t.Errorf("Active() = %q, %v; want s1, true", id, ok)
	}
	if _, ok := out.Paused(); ok {
		t.Error("Paused() = true, want absent")
	}
	if out.Start() != 1700000000 {
		t.Errorf("Start() = %d, want 1700000000", out.Start())
	}
	if out.Elapsed() != 12.5 {
		t.Errorf("Elapsed() = %v, want 12.5", out.Elapsed())
	}
}

func TestPartialRecordDefaultsSafely(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	// A record written mid-transition by another process: stop flag set,
	// everything else already cleared.
	if err := os.WriteFile(store.Path(), []byte(`{"stopped_session_id":"s9"}`), 0644); err != nil {
		t.Fatalf("write partial record: %v", err)
	}

	rec := store.Load()
	if id, ok := rec.Stopped(); !ok || id != "s9" {
		t.Errorf("Stopped() = %q, %v; want s9, true", id, ok)
	}
	if rec.Start() != 0 || rec.Elapsed() != 0 {
		t.Errorf("absent numeric slots = (%d, %v), want zeros", rec.Start(), rec.Elapsed())
	}
}

func TestForwardCompatibleWithExtraSlots(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	payload := `{"active_session_id":"s2","start_date":5,"future_slot":"ignored"}`
	if err := os.WriteFile(store.Path(), []byte(payload), 0644); err != nil {
		t.Fatalf("write record: %v", err)
	}

	rec := store.Load()
	if id, ok := rec.Active(); !ok || id != "s2" {
		t.Errorf("Active() = %q, %v; want s2, true", id, ok)
	}
}

func TestMutatePreservesOtherSlots(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	if err := store.Save(Record{ActiveSessionID: StringPtr("s1"), ElapsedSeconds: Float64Ptr(3)}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	err := store.Mutate(func(r *Record) {
		r.PausedSessionID = StringPtr("s1")
		r.ActiveSessionID = nil
	})
	if err != nil {
		t.Fatalf("Mutate() error: %v", err)
	}

	rec := store.Load()
	if _, ok := rec.Active(); ok {
		t.Error("Active() set after Mutate cleared it")
	}
	if id, ok := rec.Paused(); !ok || id != "s1" {
		t.Errorf("Paused() = %q, %v; want s1, true", id, ok)
	}
	if rec.Elapsed() != 3 {
		t.Errorf("Elapsed() = %v, want 3 (untouched slot)", rec.Elapsed())
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	if err := store.Save(Record{ActiveSessionID: StringPtr("s1")}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if rec := store.Load(); !rec.IsZero() {
		t.Errorf("Load() after Clear = %+v, want zero record", rec)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := store.Save(Record{ActiveSessionID: StringPtr("s")}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	for _, e := range entries {
		if e.Name() != RecordFileName {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, RecordFileName)); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	store := testStore(t)

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(store, 50*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Close()
	w.Start()

	for i := 0; i < 5; i++ {
		if err := store.Save(Record{ElapsedSeconds: Float64Ptr(float64(i))}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher callback never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Let any trailing debounce window drain, then check coalescing.
	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	n := calls
	mu.Unlock()
	if n > 2 {
		t.Errorf("watcher fired %d times for 5 rapid writes, want coalesced (<=2)", n)
	}
}
