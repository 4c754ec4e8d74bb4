package sysgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events *[]string
	name   string
}

func (r recorder) log(event string) { *r.events = append(*r.events, r.name+":"+event) }

func TestAssembleRunsCreateThenConnectForEverySystem(t *testing.T) {
	var events []string
	g := New()

	require.NoError(t, g.Register("a", API{
		Create:  func(any) (any, error) { events = append(events, "a:create"); return recorder{&events, "a"}, nil },
		Connect: func(sys any, q Querier) error { sys.(recorder).log("connect"); return nil },
		Destroy: func(any) { events = append(events, "a:destroy") },
	}, nil))
	require.NoError(t, g.Register("b", API{
		Create:  func(any) (any, error) { events = append(events, "b:create"); return recorder{&events, "b"}, nil },
		Connect: func(sys any, q Querier) error { sys.(recorder).log("connect"); return nil },
		Destroy: func(any) { events = append(events, "b:destroy") },
	}, nil))

	require.NoError(t, g.Assemble())
	require.Contains(t, events, "a:create")
	require.Contains(t, events, "b:create")
	require.Contains(t, events, "a:connect")
	require.Contains(t, events, "b:connect")
}

func TestDuplicateRegistrationErrors(t *testing.T) {
	g := New()
	api := API{Create: func(any) (any, error) { return nil, nil }, Destroy: func(any) {}}
	require.NoError(t, g.Register("a", api, nil))
	require.Error(t, g.Register("a", api, nil))
}

func TestQueryDuringConnectedInitLazilyInitsOnce(t *testing.T) {
	g := New()

	initCount := 0
	require.NoError(t, g.Register("dep", API{
		Create:        func(any) (any, error) { return "dep-value", nil },
		ConnectedInit: func(any, Querier) error { initCount++; return nil },
		Destroy:       func(any) {},
	}, nil))
	require.NoError(t, g.Register("consumer", API{
		Create:  func(any) (any, error) { return "consumer-value", nil },
		Destroy: func(any) {},
	}, nil))

	require.NoError(t, g.Assemble())

	v, err := g.Query("dep")
	require.NoError(t, err)
	require.Equal(t, "dep-value", v)
	require.Equal(t, 1, initCount)

	// second query does not re-run ConnectedInit
	_, err = g.Query("dep")
	require.NoError(t, err)
	require.Equal(t, 1, initCount)
}

func TestQueryForbiddenBeforeAssemble(t *testing.T) {
	g := New()
	api := API{Create: func(any) (any, error) { return nil, nil }, Destroy: func(any) {}}
	require.NoError(t, g.Register("a", api, nil))

	_, err := g.Query("a")
	require.Error(t, err)
}

func TestQueryUnknownSystemIsNotFound(t *testing.T) {
	g := New()
	require.NoError(t, g.Assemble())
	_, err := g.Query("missing")
	require.Error(t, err)
}

func TestShutdownRunsDestroyForEveryCreatedSystem(t *testing.T) {
	var destroyed []string
	g := New()
	require.NoError(t, g.Register("a", API{
		Create:  func(any) (any, error) { return nil, nil },
		Destroy: func(any) { destroyed = append(destroyed, "a") },
	}, nil))
	require.NoError(t, g.Register("b", API{
		Create:  func(any) (any, error) { return nil, nil },
		Destroy: func(any) { destroyed = append(destroyed, "b") },
	}, nil))

	require.NoError(t, g.Assemble())
	g.Ready()
	require.Equal(t, PhaseReady, g.Phase())

	g.Shutdown()
	require.Equal(t, PhaseDestroyed, g.Phase())
	require.ElementsMatch(t, []string{"a", "b"}, destroyed)
}
