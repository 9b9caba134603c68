// Package gopool runs analysis tasks on a bounded goroutine pool.
package gopool

import (
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

var minNumberPerTask = 5

// Pool is a fixed-size worker pool.
type Pool struct {
	ants *ants.Pool
}

// New creates a pool of size workers. Idle workers expire after ten seconds.
func New(size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithExpiryDuration(10*time.Second))
	if err != nil {
		return nil, err
	}
	return &Pool{ants: p}, nil
}

// ForEach calls fn(i) for every i in [0, n) on the pool and waits for all
// calls to return. If a task cannot be submitted the remaining ones are not
// started and the error is returned once the submitted ones finish.
func (p *Pool) ForEach(n int, fn func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := p.ants.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return nil
}

func (p *Pool) Cap() int { return p.ants.Cap() }

// Release stops the pool's workers.
func (p *Pool) Release() { p.ants.Release() }

// Threads suggests how many workers to use for tasks units of work.
func Threads(tasks int) int {
	threads := tasks / minNumberPerTask
	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	} else if threads == 0 {
		threads = 1
	}
	return threads
}
