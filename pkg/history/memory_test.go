package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/symphovais/voicepipe/internal/testutil"
)

func testRecord(id string, end time.Time) Record {
	return Record{
		RunID:     id,
		IsSuccess: true,
		StartTime: end.Add(-time.Second),
		EndTime:   end,
	}
}

func TestMemorySaveAndGet(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	rec := testRecord("run-1", time.Now())
	testutil.AssertNoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "run-1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.RunID, "run-1")
	testutil.AssertEqual(t, got.IsSuccess, true)
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemoryStore(10)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRecentNewestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		testutil.AssertNoError(t, store.Save(ctx, testRecord(id, base.Add(time.Duration(i)*time.Second))))
	}

	recent, err := store.Recent(ctx, 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 2)
	testutil.AssertEqual(t, recent[0].RunID, "run-2")
	testutil.AssertEqual(t, recent[1].RunID, "run-1")

	all, err := store.Recent(ctx, 50)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(all), 3)

	none, err := store.Recent(ctx, 0)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(none), 0)
}

func TestMemoryEviction(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, store.Save(ctx, testRecord(fmt.Sprintf("run-%d", i), base)))
	}

	testutil.AssertEqual(t, store.Len(), 2)
	if _, err := store.Get(ctx, "run-0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest record should be evicted, got %v", err)
	}
	if _, err := store.Get(ctx, "run-2"); err != nil {
		t.Fatalf("newest record missing: %v", err)
	}
}

func TestMemoryReplaceMovesToNewest(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Now()

	testutil.AssertNoError(t, store.Save(ctx, testRecord("a", base)))
	testutil.AssertNoError(t, store.Save(ctx, testRecord("b", base)))
	testutil.AssertNoError(t, store.Save(ctx, testRecord("a", base.Add(time.Minute))))

	testutil.AssertEqual(t, store.Len(), 2)
	recent, err := store.Recent(ctx, 1)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, recent[0].RunID, "a")
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	testutil.AssertNoError(t, store.Save(ctx, testRecord("a", time.Now())))
	testutil.AssertNoError(t, store.Delete(ctx, "a"))
	testutil.AssertEqual(t, store.Len(), 0)

	// Deleting a missing record is fine.
	testutil.AssertNoError(t, store.Delete(ctx, "missing"))
}

func TestMemoryPrune(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, store.Save(ctx, testRecord(fmt.Sprintf("run-%d", i), base)))
	}

	removed, err := store.Prune(ctx, 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 3)
	testutil.AssertEqual(t, store.Len(), 2)

	recent, err := store.Recent(ctx, 10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, recent[0].RunID, "run-4")
	testutil.AssertEqual(t, recent[1].RunID, "run-3")

	// Nothing in excess.
	removed, err = store.Prune(ctx, 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 0)

	// Negative keep clears everything.
	removed, err = store.Prune(ctx, -1)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 2)
	testutil.AssertEqual(t, store.Len(), 0)
}

func TestMemoryDefaultCapacity(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < DefaultCapacity+5; i++ {
		testutil.AssertNoError(t, store.Save(ctx, testRecord(fmt.Sprintf("run-%d", i), time.Now())))
	}
	testutil.AssertEqual(t, store.Len(), DefaultCapacity)
}

func TestMemoryConcurrentSaves(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = store.Save(ctx, testRecord(fmt.Sprintf("g%d-run-%d", g, i), time.Now()))
			}
		}(g)
	}
	wg.Wait()

	testutil.AssertEqual(t, store.Len(), 50)
}
