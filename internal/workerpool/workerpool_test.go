package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2, nil)
	var running, maxRunning int32
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		p.Go(func() {
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxRunning)
				if n <= cur || atomic.CompareAndSwapInt32(&maxRunning, cur, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			done <- struct{}{}
		})
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pooled tasks")
		}
	}
	if atomic.LoadInt32(&maxRunning) > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", maxRunning)
	}
}

func TestPoolStopWaitsForInFlight(t *testing.T) {
	p := New(4, nil)
	var ran int32
	for i := 0; i < 5; i++ {
		p.Go(func() {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
		})
	}
	p.Stop()
	if atomic.LoadInt32(&ran) != 5 {
		t.Fatalf("expected every submitted task to finish before Stop returns, got %d", ran)
	}
}
