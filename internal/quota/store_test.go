package quota

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	store := NewFileStore(path)

	st, err := store.Load()
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if st != nil {
		t.Fatal("expected nil state for missing file")
	}

	want := &State{
		MonthlyUsed: 12,
		DailyUsed:   3,
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DayStart:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MonthlyUsed != want.MonthlyUsed || got.DailyUsed != want.DailyUsed {
		t.Errorf("counters = %d/%d, want %d/%d",
			got.MonthlyUsed, got.DailyUsed, want.MonthlyUsed, want.DailyUsed)
	}
	if !got.PeriodStart.Equal(want.PeriodStart) {
		t.Errorf("period start = %v, want %v", got.PeriodStart, want.PeriodStart)
	}
}

func TestFileStoreCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(); err == nil {
		t.Fatal("expected error for corrupt record")
	}
}

func TestCorruptRecordStartsTrackerFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := New(Config{}, NewFileStore(path))
	stats := tr.Stats()
	if stats.Used != 0 || stats.DailyUsed != 0 {
		t.Errorf("stats = %+v, want zeroed state", stats)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	st := &State{MonthlyUsed: 1}
	store.Save(st)

	st.MonthlyUsed = 99
	got, _ := store.Load()
	if got.MonthlyUsed != 1 {
		t.Errorf("stored state mutated through caller's pointer: %d", got.MonthlyUsed)
	}
}
