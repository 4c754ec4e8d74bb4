package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/catalystcommunity/enginecore/internal/dispatch"
	"github.com/catalystcommunity/enginecore/internal/metrics"
)

// NodeJob wraps a dispatch.Job so a node's body can dispatch child tasks
// through the embedded job and then call Release with no arguments — the
// executor's neighbour-firing completion logic travels with the wrapper,
// invisibly to node authors, while still honoring spec's "the node
// function must release the job" contract.
type NodeJob struct {
	*dispatch.Job
	onComplete func()
}

// Release releases the underlying job, firing the executor's completion
// logic (decrementing outbound neighbours' inbound counters) once the last
// task finishes.
func (j *NodeJob) Release() error {
	return j.Job.Release(j.onComplete)
}

type execution struct {
	graph     *Graph
	pool      *dispatch.Pool
	inbound   []atomic.Int64
	remaining atomic.Int64
	done      chan struct{}
}

// Execute runs the finalized graph to completion: every zero-inbound node
// is dispatched immediately; a node's completion decrements its outbound
// neighbours' inbound counters, dispatching any that reach zero. The call
// blocks until every node has completed (spec §4.3.4) or ctx is canceled —
// there is no mid-run cancellation of already-dispatched nodes (spec
// §4.3.5).
func (g *Graph) Execute(ctx context.Context, pool *dispatch.Pool) error {
	if len(g.vertices) == 0 {
		return nil
	}

	start := time.Now()
	exec := &execution{
		graph: g,
		pool:  pool,
		done:  make(chan struct{}),
	}
	exec.inbound = make([]atomic.Int64, len(g.vertices))
	exec.remaining.Store(int64(len(g.vertices)))
	for i, v := range g.vertices {
		exec.inbound[i].Store(int64(v.inboundCount))
	}

	for i, v := range g.vertices {
		if v.inboundCount == 0 {
			exec.dispatchNode(i)
		}
	}

	select {
	case <-exec.done:
		metrics.GraphFinalizations.WithLabelValues("success").Inc()
		metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		metrics.GraphFinalizations.WithLabelValues("canceled").Inc()
		return ctx.Err()
	}
}

func (e *execution) dispatchNode(idx int) {
	v := e.graph.vertices[idx]
	job := e.pool.NewJob()
	nj := &NodeJob{Job: job}
	nj.onComplete = func() { e.onNodeComplete(idx) }

	e.pool.Dispatch(v.name, nil, func() {
		metrics.NodeExecutions.WithLabelValues(v.name).Inc()
		v.fn(nj)
	})
}

func (e *execution) onNodeComplete(idx int) {
	v := e.graph.vertices[idx]
	for _, out := range v.outbound {
		if e.inbound[out].Add(-1) == 0 {
			e.dispatchNode(out)
		}
	}
	if e.remaining.Add(-1) == 0 {
		close(e.done)
	}
}
