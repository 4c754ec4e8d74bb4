// Package sysgraph implements the context system graph: a demand-driven
// registration graph that assembles registered systems through
// create -> connect -> connected-init -> ready, and tears them down in
// reverse through connected-shutdown -> disconnect -> destroy.
package sysgraph

import (
	"fmt"
	"sync"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/errs"
)

// Phase is the graph's current assembly/teardown phase. Query is only
// permitted during Connect, ConnectedInit, Ready, Shutdown, and
// Disconnect.
type Phase int

const (
	PhaseCreate Phase = iota
	PhaseConnect
	PhaseConnectedInit
	PhaseReady
	PhaseShutdown
	PhaseDisconnect
	PhaseDestroyed
)

// API is the table of lifecycle callbacks a system registers. Create and
// Destroy are required; the rest default to no-ops.
type API struct {
	Create            func(cfg any) (any, error)
	Connect           func(sys any, q Querier) error
	ConnectedInit     func(sys any, q Querier) error
	ConnectedShutdown func(sys any)
	Disconnect        func(sys any)
	Destroy           func(sys any)
}

// Querier is the handle systems use during Connect/ConnectedInit to
// reach other systems by name.
type Querier interface {
	Query(name string) (any, error)
}

type node struct {
	name   string
	api    API
	config any
	value  any

	created       bool
	connected     bool
	initialized   bool
	connectionRef int // back-edges from systems that queried this one during Connect
	initRef       int // queries this system made of others while its own ConnectedInit ran
}

// Graph is the demand-driven system registration graph.
type Graph struct {
	mu      sync.Mutex
	phase   Phase
	nodes   map[string]*node
	order   []string // registration order, used for phase-wide sweeps
	opStack []string // init-time operation stack, records query-induced dependants
}

// New creates an empty graph in the create phase.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node), phase: PhaseCreate}
}

// Register declares a system by name with its api table and optional
// user config. Registration is only valid before Assemble runs.
func (g *Graph) Register(name string, api API, config any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseCreate {
		return fmt.Errorf("sysgraph: cannot register %q after assembly has started: %w", name, errs.ErrValidation)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("sysgraph: system %q already registered: %w", name, errs.ErrDuplicate)
	}
	if api.Create == nil || api.Destroy == nil {
		return fmt.Errorf("sysgraph: system %q must supply Create and Destroy: %w", name, errs.ErrInvalidArgument)
	}

	g.nodes[name] = &node{name: name, api: api, config: config}
	g.order = append(g.order, name)
	return nil
}

// Assemble runs every requested system through create, then connect.
// Order within each phase is irrelevant (spec's "order irrelevant").
func (g *Graph) Assemble() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range g.order {
		n := g.nodes[name]
		v, err := n.api.Create(n.config)
		if err != nil {
			return fmt.Errorf("sysgraph: create %q: %w", name, err)
		}
		n.value = v
		n.created = true
		logging.Log.WithField("system", name).Debug("sysgraph: created")
	}

	g.phase = PhaseConnect
	for _, name := range g.order {
		n := g.nodes[name]
		if n.api.Connect == nil {
			n.connected = true
			continue
		}
		if err := n.api.Connect(n.value, g); err != nil {
			return fmt.Errorf("sysgraph: connect %q: %w", name, err)
		}
		n.connected = true
		logging.Log.WithField("system", name).Debug("sysgraph: connected")
	}

	g.phase = PhaseConnectedInit
	return nil
}

// Ready transitions the graph to the ready phase. Callers typically call
// Query for every leaf system they need before calling Ready, which
// drives the demand-based ConnectedInit traversal; Ready itself performs
// no further initialization.
func (g *Graph) Ready() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhaseReady
}

// Phase reports the graph's current phase.
func (g *Graph) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Query resolves a system by name. During connect it only counts a
// connection ref on the queried system; in later phases it lazily runs
// the system's ConnectedInit the first time it's queried and, when called
// from inside another system's ConnectedInit, counts an init ref on that
// caller. Query is forbidden outside
// connect/connected-init/ready/shutdown/disconnect.
func (g *Graph) Query(name string) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryLocked(name)
}

func (g *Graph) queryLocked(name string) (any, error) {
	switch g.phase {
	case PhaseCreate, PhaseDestroyed:
		return nil, fmt.Errorf("sysgraph: query forbidden in phase %v: %w", g.phase, errs.ErrValidation)
	}

	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("sysgraph: system %q: %w", name, errs.ErrNotFound)
	}

	if g.phase == PhaseConnect {
		n.connectionRef++
		return n.value, nil
	}

	if !n.initialized && n.api.ConnectedInit != nil {
		g.opStack = append(g.opStack, name)
		if err := n.api.ConnectedInit(n.value, g); err != nil {
			g.opStack = g.opStack[:len(g.opStack)-1]
			return nil, fmt.Errorf("sysgraph: connected-init %q: %w", name, err)
		}
		g.opStack = g.opStack[:len(g.opStack)-1]
	}
	n.initialized = true

	if len(g.opStack) > 0 {
		dependant := g.nodes[g.opStack[len(g.opStack)-1]]
		dependant.initRef++
	}

	return n.value, nil
}

// Shutdown tears the graph down in reverse registration order:
// connected-shutdown for every initialized system, then disconnect, then
// destroy. The init and connection ref counts recorded by Query do not
// affect this order.
func (g *Graph) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.phase = PhaseShutdown
	for i := len(g.order) - 1; i >= 0; i-- {
		n := g.nodes[g.order[i]]
		if !n.initialized {
			continue
		}
		if n.api.ConnectedShutdown != nil {
			n.api.ConnectedShutdown(n.value)
		}
		n.initRef = 0
		logging.Log.WithField("system", n.name).Debug("sysgraph: connected-shutdown")
	}

	g.phase = PhaseDisconnect
	for i := len(g.order) - 1; i >= 0; i-- {
		n := g.nodes[g.order[i]]
		if !n.connected {
			continue
		}
		if n.api.Disconnect != nil {
			n.api.Disconnect(n.value)
		}
		n.connectionRef = 0
		logging.Log.WithField("system", n.name).Debug("sysgraph: disconnect")
	}

	for i := len(g.order) - 1; i >= 0; i-- {
		n := g.nodes[g.order[i]]
		if !n.created {
			continue
		}
		n.api.Destroy(n.value)
		logging.Log.WithField("system", n.name).Debug("sysgraph: destroy")
	}

	g.phase = PhaseDestroyed
}
