package sim

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is one independent scenario for an Ensemble.
type Job struct {
	Name       string
	Dyn        Dynamics
	Integrator Integrator
	X0         State
	Cfg        Config
	Metrics    []Metric
}

type Ensemble struct {
	opts []Option
}

func NewEnsemble(opts ...Option) *Ensemble {
	return &Ensemble{opts: opts}
}

// Run executes every job on its own Simulator. Integrators keep scratch
// buffers, so a job must not share its Integrator with another job.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			s := New(job.Dyn, job.Integrator, e.opts...)
			for _, m := range job.Metrics {
				s.AddMetric(m)
			}
			res, err := s.Run(gctx, job.X0, job.Cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParallelFor executes fn over [0, n) split into contiguous chunks.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	numWorkers := runtime.GOMAXPROCS(0)
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
