package history

import (
	"context"

	"github.com/symphovais/voicepipe/pkg/metrics"
)

// InstrumentStore wraps a store with Prometheus counters for saves, save
// failures and pruned records. The backend label distinguishes store
// implementations. A nil registry returns the store unchanged.
func InstrumentStore(s Store, backend string, reg *metrics.Registry) Store {
	if reg == nil {
		return s
	}
	return &instrumentedStore{next: s, backend: backend, reg: reg}
}

type instrumentedStore struct {
	next    Store
	backend string
	reg     *metrics.Registry
}

func (is *instrumentedStore) Save(ctx context.Context, rec Record) error {
	err := is.next.Save(ctx, rec)
	if err != nil {
		is.reg.HistorySaveFailures.WithLabelValues(is.backend).Inc()
		return err
	}
	is.reg.HistorySaves.WithLabelValues(is.backend).Inc()
	return nil
}

func (is *instrumentedStore) Get(ctx context.Context, runID string) (Record, error) {
	return is.next.Get(ctx, runID)
}

func (is *instrumentedStore) Recent(ctx context.Context, n int) ([]Record, error) {
	return is.next.Recent(ctx, n)
}

func (is *instrumentedStore) Delete(ctx context.Context, runID string) error {
	return is.next.Delete(ctx, runID)
}

func (is *instrumentedStore) Prune(ctx context.Context, keep int) (int, error) {
	removed, err := is.next.Prune(ctx, keep)
	if err == nil && removed > 0 {
		is.reg.HistoryPruned.WithLabelValues(is.backend).Add(float64(removed))
	}
	return removed, err
}

func (is *instrumentedStore) Close() error {
	return is.next.Close()
}
