package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter(2, 0)
	var inFlight int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Execute(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, int(maxSeen), 2)
}

func TestLimiter_ReleasesPermitOnError(t *testing.T) {
	l := NewLimiter(1, 0)
	err := l.Execute(context.Background(), func() error { return assert.AnError })
	require.Error(t, err)

	// a second call must still be able to acquire the sole permit
	ran := false
	err = l.Execute(context.Background(), func() error { ran = true; return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLimiter_RespectsContextCancellation(t *testing.T) {
	l := NewLimiter(1, 0)
	block := make(chan struct{})
	go func() {
		_ = l.Execute(context.Background(), func() error {
			<-block
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the goroutine take the sole permit

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Execute(ctx, func() error { return nil })
	require.Error(t, err)
	close(block)
}
