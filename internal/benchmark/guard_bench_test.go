package benchmark

import (
	"testing"

	"github.com/symphovais/voicepipe/pkg/guard"
)

// BenchmarkRateAllow measures the token bucket fast path.
func BenchmarkRateAllow(b *testing.B) {
	rate, err := guard.NewRate(guard.Inf, 1)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rate.Allow()
	}
}

// BenchmarkSlotsTryAcquire measures uncontended slot turnover.
func BenchmarkSlotsTryAcquire(b *testing.B) {
	slots, err := guard.NewSlots(1)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !slots.TryAcquire() {
			b.Fatal("slot should be free")
		}
		slots.Release()
	}
}

// BenchmarkGuardAdmit measures a full admit and release cycle under
// concurrent triggers.
func BenchmarkGuardAdmit(b *testing.B) {
	g, err := guard.New(guard.Config{MaxConcurrent: 64})
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			release, err := g.Admit()
			if err != nil {
				b.Fatal(err)
			}
			release()
		}
	})
}
