package chanx

import (
	"context"
	"sync"
)

// Merge combines multiple input channels into a single output channel
// (fan-in). The output channel is closed when all inputs are closed or
// the context is cancelled. The order of values is non-deterministic.
//
// Every internal goroutine is tied to ctx and exits promptly on
// cancellation.
func Merge[T any](ctx context.Context, chs ...<-chan T) <-chan T {
	out := make(chan T)

	var wg sync.WaitGroup
	for _, ch := range chs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok, err := Recv(ctx, ch)
				if !ok || err != nil {
					return
				}
				if Send(ctx, out, v) != nil {
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
