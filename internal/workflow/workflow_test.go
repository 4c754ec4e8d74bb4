package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/catalystcommunity/enginecore/internal/dispatch"
	"github.com/catalystcommunity/enginecore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialWorkflowRunsInOrder(t *testing.T) {
	pool := dispatch.New(4, nil)
	defer pool.StopWait()

	var mu sync.Mutex
	var order []string
	record := func(name string) NodeFunc {
		return func(job *NodeJob) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			require.NoError(t, job.Release())
		}
	}

	b := NewBuilder()
	require.NoError(t, b.AddNode("A", record("A")))
	require.NoError(t, b.AddNode("B", record("B"), DependsOn("A")))
	require.NoError(t, b.AddNode("C", record("C"), DependsOn("B")))

	g, err := b.Finalize()
	require.NoError(t, err)

	require.NoError(t, g.Execute(context.Background(), pool))
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestForkJoinWorkflow(t *testing.T) {
	pool := dispatch.New(8, nil)
	defer pool.StopWait()

	var mu sync.Mutex
	finished := map[string]bool{}
	record := func(name string) NodeFunc {
		return func(job *NodeJob) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			finished[name] = true
			mu.Unlock()
			require.NoError(t, job.Release())
		}
	}

	b := NewBuilder()
	require.NoError(t, b.AddNode("A", record("A")))
	require.NoError(t, b.AddNode("B1", record("B1"), DependsOn("A")))
	require.NoError(t, b.AddNode("B2", record("B2"), DependsOn("A")))
	require.NoError(t, b.AddNode("B3", record("B3"), DependsOn("A")))
	require.NoError(t, b.AddNode("C1", record("C1"), DependsOn("B1")))
	require.NoError(t, b.AddNode("C2", record("C2"), DependsOn("B2")))
	require.NoError(t, b.AddNode("C3", record("C3"), DependsOn("B3")))
	require.NoError(t, b.AddNode("D", record("D"), DependsOn("C1", "C2", "C3")))

	g, err := b.Finalize()
	require.NoError(t, err)
	require.NoError(t, g.Execute(context.Background(), pool))

	for _, n := range []string{"A", "B1", "B2", "B3", "C1", "C2", "C3", "D"} {
		assert.True(t, finished[n], "expected %s to have run", n)
	}
}

func TestCheckpointDependencyOrdering(t *testing.T) {
	pool := dispatch.New(4, nil)
	defer pool.StopWait()

	var mu sync.Mutex
	var order []string
	record := func(name string) NodeFunc {
		return func(job *NodeJob) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			require.NoError(t, job.Release())
		}
	}

	b := NewBuilder()
	require.NoError(t, b.AddNode("A", record("A"), DependsOn("checkpoint_1")))
	require.NoError(t, b.AddNode("B", record("B"), DependencyOf("checkpoint_2")))
	b.RegisterCheckpointDependency("checkpoint_1", "checkpoint_2")

	g, err := b.Finalize()
	require.NoError(t, err)
	require.NoError(t, g.Execute(context.Background(), pool))

	require.Len(t, order, 2)
	assert.Equal(t, "B", order[0])
	assert.Equal(t, "A", order[1])
}

func TestFinalizeDetectsCycle(t *testing.T) {
	b := NewBuilder()
	noop := func(job *NodeJob) { require.NoError(t, job.Release()) }
	require.NoError(t, b.AddNode("A", noop, DependsOn("B")))
	require.NoError(t, b.AddNode("B", noop, DependsOn("A")))

	_, err := b.Finalize()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestFinalizeDetectsAccessRace(t *testing.T) {
	b := NewBuilder()
	noop := func(job *NodeJob) { require.NoError(t, job.Release()) }
	require.NoError(t, b.AddNode("A", noop, WithAccess("world", AccessModification)))
	require.NoError(t, b.AddNode("B", noop, WithAccess("world", AccessModification)))

	_, err := b.Finalize()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestFinalizeAllowsConcurrentPopulation(t *testing.T) {
	b := NewBuilder()
	noop := func(job *NodeJob) { require.NoError(t, job.Release()) }
	require.NoError(t, b.AddNode("A", noop, WithAccess("world", AccessPopulation)))
	require.NoError(t, b.AddNode("B", noop, WithAccess("world", AccessPopulation)))

	_, err := b.Finalize()
	require.NoError(t, err)
}

func TestFinalizeAllowsOrderedConflictingAccess(t *testing.T) {
	b := NewBuilder()
	noop := func(job *NodeJob) { require.NoError(t, job.Release()) }
	require.NoError(t, b.AddNode("A", noop, WithAccess("world", AccessModification)))
	require.NoError(t, b.AddNode("B", noop, WithAccess("world", AccessModification), DependsOn("A")))

	_, err := b.Finalize()
	require.NoError(t, err)
}

func TestAddNodeDuplicateNameErrors(t *testing.T) {
	b := NewBuilder()
	noop := func(job *NodeJob) { require.NoError(t, job.Release()) }
	require.NoError(t, b.AddNode("A", noop))
	err := b.AddNode("A", noop)
	assert.ErrorIs(t, err, errs.ErrDuplicate)
}
