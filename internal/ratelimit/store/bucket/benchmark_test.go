package bucket

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkAllow(b *testing.B) {
	store := New()
	ctx := context.Background()

	for b.Loop() {
		_, _ = store.Allow(ctx, "bench-key", 1000, time.Minute)
	}
}

func BenchmarkAllow_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.Allow(ctx, "bench-key", 1000, time.Minute)
		}
	})
}

// Many distinct client IPs, as seen behind a busy public form.
func BenchmarkAllow_HighCardinality(b *testing.B) {
	store := New()
	ctx := context.Background()

	for i := 0; b.Loop(); i++ {
		_, _ = store.Allow(ctx, fmt.Sprintf("submit:10.0.%d.%d", (i/256)%256, i%256), 20, time.Hour)
	}
}
