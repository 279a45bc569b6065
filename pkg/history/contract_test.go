package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/symphovais/voicepipe/internal/testutil"
)

// runStoreContract exercises the Store interface semantics every backend
// must share. Backend-specific behavior (eviction, TTL) stays in the
// backend's own tests.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	// Roundtrip with every optional field set.
	full := Record{
		RunID:        "contract-full",
		IsSuccess:    false,
		Canceled:     true,
		ErrorMessage: "canceled before stage \"transcribe\"",
		FailedStage:  "transcribe",
		Text:         "partial transcript",
		StartTime:    base.Add(-2 * time.Second),
		EndTime:      base,
		DurationMs:   2000,
	}
	testutil.AssertNoError(t, store.Save(ctx, full))

	got, err := store.Get(ctx, "contract-full")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.RunID, full.RunID)
	testutil.AssertEqual(t, got.Canceled, true)
	testutil.AssertEqual(t, got.ErrorMessage, full.ErrorMessage)
	testutil.AssertEqual(t, got.FailedStage, full.FailedStage)
	testutil.AssertEqual(t, got.Text, full.Text)
	testutil.AssertEqual(t, got.DurationMs, int64(2000))

	_, err = store.Get(ctx, "contract-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Recent is newest first and honors the limit.
	for i := 1; i <= 3; i++ {
		rec := testRecord(fmt.Sprintf("contract-%d", i), base.Add(time.Duration(i)*time.Second))
		testutil.AssertNoError(t, store.Save(ctx, rec))
	}

	recent, err := store.Recent(ctx, 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 2)
	testutil.AssertEqual(t, recent[0].RunID, "contract-3")
	testutil.AssertEqual(t, recent[1].RunID, "contract-2")

	// Re-saving a run moves it to newest without growing the store.
	moved := testRecord("contract-1", base.Add(10*time.Second))
	testutil.AssertNoError(t, store.Save(ctx, moved))

	recent, err = store.Recent(ctx, 100)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 4)
	testutil.AssertEqual(t, recent[0].RunID, "contract-1")

	// Prune keeps the newest records.
	removed, err := store.Prune(ctx, 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 2)

	recent, err = store.Recent(ctx, 100)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 2)
	testutil.AssertEqual(t, recent[0].RunID, "contract-1")
	testutil.AssertEqual(t, recent[1].RunID, "contract-3")

	// Delete is idempotent.
	testutil.AssertNoError(t, store.Delete(ctx, "contract-1"))
	testutil.AssertNoError(t, store.Delete(ctx, "contract-1"))
	_, err = store.Get(ctx, "contract-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore(50)
	defer store.Close()

	runStoreContract(t, store)
}

// TestRedisStoreContract needs a reachable Redis server and skips
// otherwise, like the package example.
func TestRedisStoreContract(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	prefix := fmt.Sprintf("voicepipe:contract:%d", time.Now().UnixNano())
	store, err := NewRedisStore(RedisConfig{Redis: client, Prefix: prefix})
	testutil.AssertNoError(t, err)
	defer func() {
		keys := storeKeys(prefix)
		client.Del(context.Background(), keys["records"], keys["index"])
		store.Close()
	}()

	runStoreContract(t, store)
}
