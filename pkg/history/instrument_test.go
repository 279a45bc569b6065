package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/symphovais/voicepipe/internal/testutil"
	"github.com/symphovais/voicepipe/pkg/metrics"
)

// failingStore rejects every save.
type failingStore struct {
	Store
	saveErr error
}

func (fs *failingStore) Save(ctx context.Context, rec Record) error {
	return fs.saveErr
}

func TestInstrumentStoreCountsSaves(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	store := InstrumentStore(NewMemoryStore(10), "memory", reg)
	ctx := context.Background()

	testutil.AssertNoError(t, store.Save(ctx, testRecord("a", time.Now())))
	testutil.AssertNoError(t, store.Save(ctx, testRecord("b", time.Now())))

	saves := promtestutil.ToFloat64(reg.HistorySaves.WithLabelValues("memory"))
	testutil.AssertEqual(t, saves, float64(2))

	failures := promtestutil.ToFloat64(reg.HistorySaveFailures.WithLabelValues("memory"))
	testutil.AssertEqual(t, failures, float64(0))
}

func TestInstrumentStoreCountsFailures(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	errBoom := errors.New("redis gone")
	store := InstrumentStore(&failingStore{Store: NewMemoryStore(10), saveErr: errBoom}, "redis", reg)

	err := store.Save(context.Background(), testRecord("a", time.Now()))
	if !errors.Is(err, errBoom) {
		t.Fatalf("save error not passed through: %v", err)
	}

	failures := promtestutil.ToFloat64(reg.HistorySaveFailures.WithLabelValues("redis"))
	testutil.AssertEqual(t, failures, float64(1))
}

func TestInstrumentStoreCountsPruned(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	inner := NewMemoryStore(10)
	store := InstrumentStore(inner, "memory", reg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, store.Save(ctx, testRecord(string(rune('a'+i)), time.Now())))
	}

	removed, err := store.Prune(ctx, 1)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 4)

	pruned := promtestutil.ToFloat64(reg.HistoryPruned.WithLabelValues("memory"))
	testutil.AssertEqual(t, pruned, float64(4))
}

func TestInstrumentStoreNilRegistry(t *testing.T) {
	inner := NewMemoryStore(10)
	store := InstrumentStore(inner, "memory", nil)
	if store != Store(inner) {
		t.Fatal("nil registry should return the store unchanged")
	}
}

func TestInstrumentStorePassThrough(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	store := InstrumentStore(NewMemoryStore(10), "memory", reg)
	ctx := context.Background()

	testutil.AssertNoError(t, store.Save(ctx, testRecord("a", time.Now())))

	got, err := store.Get(ctx, "a")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.RunID, "a")

	recent, err := store.Recent(ctx, 5)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 1)

	testutil.AssertNoError(t, store.Delete(ctx, "a"))
	testutil.AssertNoError(t, store.Close())
}
