// Package workerpool implements a bounded-concurrency task runner,
// spec.md Section 5's "extender [harvester]... runs in parallel with
// siblings, bounded by a thread pool". Grounded on the shape implied
// by internal/server's workerPool (its defining file is absent from
// the retrieval pack — only worker_pool_test.go and its Server.New/
// Server.Start/Server.Close call sites survive the retrieval pack's
// size caps, the same kind of gap documented for internal/cli.go's
// getRoot in DESIGN.md): a fixed-size goroutine pool configured with a
// MaxWorkersCount and a Logger, started and stopped explicitly.
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Pool runs submitted funcs on at most MaxWorkers goroutines at once.
type Pool struct {
	log      *zap.Logger
	sem      chan struct{}
	wg       sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once
}

// New builds a Pool allowing up to maxWorkers concurrently-running
// tasks. maxWorkers <= 0 is treated as 1.
func New(maxWorkers int, log *zap.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		log:     log.Named("workerpool"),
		sem:     make(chan struct{}, maxWorkers),
		stopped: make(chan struct{}),
	}
}

// Go runs fn once a worker slot is available, blocking the caller
// until either a slot frees up or the pool is stopped (in which case
// Go returns without running fn). Safe for concurrent use.
func (p *Pool) Go(fn func()) {
	select {
	case <-p.stopped:
		return
	default:
	}
	select {
	case p.sem <- struct{}{}:
	case <-p.stopped:
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
}

// Wait blocks until every task submitted with Go has returned.
func (p *Pool) Wait() { p.wg.Wait() }

// Stop prevents further Go calls from starting new work and waits for
// in-flight tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.wg.Wait()
}
