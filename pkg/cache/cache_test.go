package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

var (
	testOriginal = locator.MustParse("id=old-button")
	testHealed   = locator.MustParse("id=new-button")
	testPage     = "page-fp-1"
)

func TestLookup_MissOnEmptyCache(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.Lookup(testOriginal, testPage); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestRecordSuccess_ThenLookup(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)

	got, ok := c.Lookup(testOriginal, testPage)
	if !ok {
		t.Fatal("expected hit after RecordSuccess")
	}
	if got != testHealed {
		t.Errorf("got %v, want %v", got, testHealed)
	}
	if c.Size() != 1 {
		t.Errorf("got size %d, want 1", c.Size())
	}
}

func TestLookup_ScopedByPage(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)

	if _, ok := c.Lookup(testOriginal, "other-page-fp"); ok {
		t.Error("entry must not leak onto a different page context")
	}
}

func TestTwoStrikes_Eviction(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)

	// First failure: entry survives.
	c.RecordFailure(testOriginal, testPage)
	if _, ok := c.Lookup(testOriginal, testPage); !ok {
		t.Fatal("entry must survive a single failure")
	}

	// Second consecutive failure: entry becomes ineligible.
	c.RecordFailure(testOriginal, testPage)
	if _, ok := c.Lookup(testOriginal, testPage); ok {
		t.Error("entry must be evicted after two consecutive failures")
	}
	if c.Size() != 0 {
		t.Errorf("got size %d, want 0 after eviction", c.Size())
	}
}

func TestSuccess_ResetsStrikes(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)

	c.RecordFailure(testOriginal, testPage)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	c.RecordFailure(testOriginal, testPage)

	// Failures were never consecutive: still live.
	if _, ok := c.Lookup(testOriginal, testPage); !ok {
		t.Error("intervening success must reset the strike counter")
	}
}

func TestRecordFailure_UnknownKeyIsNoop(t *testing.T) {
	c, _ := New(nil)
	c.RecordFailure(testOriginal, testPage)
	if c.Size() != 0 {
		t.Error("failure on unknown key must not create an entry")
	}
}

func TestRecordSuccess_Overwrites(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.75)

	better := locator.MustParse("id=even-newer-button")
	c.RecordSuccess(testOriginal, testPage, better, 0.95)

	got, _ := c.Lookup(testOriginal, testPage)
	if got != better {
		t.Errorf("got %v, want overwritten locator %v", got, better)
	}
	if c.Size() != 1 {
		t.Errorf("got size %d, want 1 (upsert, not duplicate)", c.Size())
	}

	entries := c.Entries()
	if len(entries) != 1 || entries[0].HitCount != 2 {
		t.Errorf("expected hit count 2 on the single entry, got %+v", entries)
	}
}

func TestClear(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	c.Clear()
	if c.Size() != 0 {
		t.Error("clear must remove all entries")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			orig := locator.New(locator.ID, fmt.Sprintf("el-%d", worker%4))
			for j := 0; j < 200; j++ {
				c.RecordSuccess(orig, testPage, testHealed, 0.9)
				c.Lookup(orig, testPage)
				c.RecordFailure(orig, testPage)
				c.Size()
			}
		}(i)
	}
	wg.Wait()

	// Four distinct keys were touched; entries may be live or evicted
	// but the map must be consistent.
	if got := len(c.Entries()); got > 4 {
		t.Errorf("got %d entries, want at most 4", got)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healing_cache.json")

	c, _ := New(NewFileStore(path))
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	if err := c.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	reloaded, err := New(NewFileStore(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, ok := reloaded.Lookup(testOriginal, testPage)
	if !ok {
		t.Fatal("expected entry to survive a reload")
	}
	if got != testHealed {
		t.Errorf("got %v, want %v", got, testHealed)
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
	entries, err := fs.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healing_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(NewFileStore(path))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("got error %v, want ErrCorrupt", err)
	}
	// Availability over strictness: the cache is still usable.
	if c == nil || c.Size() != 0 {
		t.Error("corrupt store must yield a working empty cache")
	}
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	if _, ok := c.Lookup(testOriginal, testPage); !ok {
		t.Error("cache must accept entries after a corrupt load")
	}
}

func TestFlush_NoStoreIsNoop(t *testing.T) {
	c, _ := New(nil)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	if err := c.Flush(); err != nil {
		t.Errorf("flush without store must be a no-op, got %v", err)
	}
}

func TestSQLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healing_cache.db")

	store, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	c, _ := New(store)
	c.RecordSuccess(testOriginal, testPage, testHealed, 0.95)
	c.RecordFailure(testOriginal, testPage)
	if err := c.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Original != testOriginal || e.Healed != testHealed {
		t.Errorf("locators did not round-trip: %+v", e)
	}
	if e.Strikes != 1 || e.HitCount != 1 {
		t.Errorf("bookkeeping did not round-trip: %+v", e)
	}
	if e.LastFailedAt.IsZero() {
		t.Error("lastFailedAt must round-trip")
	}
}
