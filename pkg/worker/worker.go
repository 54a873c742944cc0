package worker

import (
	"context"
	"sync"
)

type Handler = func(workerIndex int, job interface{})

// Pool runs a fixed slice of jobs across a bounded number of goroutines
// and returns when every picked-up job has finished. Jobs are handed out
// from a shared channel, so each job is processed exactly once within a
// run. Cancelling the context stops the hand-out of remaining jobs but
// never interrupts a job already in flight.
type Pool struct {
	workers int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Run(ctx context.Context, jobs []interface{}, do Handler) {
	if len(jobs) == 0 || do == nil {
		return
	}

	n := p.workers
	if n > len(jobs) {
		n = len(jobs)
	}

	jobCh := make(chan interface{}, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(index int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobCh:
					if !ok {
						return
					}
					do(index, job)
				}
			}
		}(i)
	}
	wg.Wait()
}
