// Package parallel implements a fixed worker fan-out: N workers each run a
// caller-supplied task against their own shard of the current batch, and
// the coordinator blocks until all of them return before moving on to
// reconciliation. Built on golang.org/x/sync/errgroup rather than a
// hand-rolled condition-variable barrier.
package parallel

import "golang.org/x/sync/errgroup"

// Pool runs a fixed number of worker tasks per call to Run, one goroutine
// per worker index, and blocks until every one of them has returned. There
// is no work stealing: partitioning is decided entirely by the caller
// before Run is invoked.
type Pool struct {
	Workers int
}

// New returns a Pool sized to run workers tasks per batch.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{Workers: workers}
}

// Run invokes task once per worker id in [0, Workers) and waits for all of
// them to return. task must not mutate any state another worker might read
// concurrently; it should instead accumulate results into a slot the
// caller indexed by id. The first error returned by any worker is returned
// from Run.
func (p *Pool) Run(task func(id int) error) error {
	var g errgroup.Group
	for id := 0; id < p.Workers; id++ {
		id := id
		g.Go(func() error {
			return task(id)
		})
	}
	return g.Wait()
}
