package jobtree_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/baxromumarov/jobtree"
)

func BenchmarkRunFlat(b *testing.B) {
	for _, jobs := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("jobs-%d", jobs), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
					for range jobs {
						sp.Go("bench", func(ctx context.Context) error {
							return nil
						})
					}
				})
			}
		})
	}
}

func BenchmarkRunNested(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
			for range 8 {
				sp.Spawn("parent", func(ctx context.Context, sp jobtree.Spawner) error {
					for range 8 {
						sp.Go("leaf", func(ctx context.Context) error {
							return nil
						})
					}
					return nil
				})
			}
		})
	}
}

func BenchmarkRunWithLimit(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
			for range 100 {
				sp.Go("bench", func(ctx context.Context) error {
					return nil
				})
			}
		}, jobtree.WithLimit(8))
	}
}

func BenchmarkPoolScheduler(b *testing.B) {
	p := jobtree.NewPool(context.Background(), 8, jobtree.WithQueueSize(256))
	defer p.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
			for range 100 {
				sp.Go("bench", func(ctx context.Context) error {
					return nil
				})
			}
		}, jobtree.WithScheduler(p))
	}
}

func BenchmarkAsync(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = jobtree.Run(context.Background(), func(sp jobtree.Spawner) {
			d := jobtree.Async(sp, "bench", func(ctx context.Context) (int, error) {
				return 1, nil
			})
			_, _ = d.Result()
		})
	}
}
