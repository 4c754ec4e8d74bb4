// Package workflow implements the data-race-validated DAG of node
// functions scheduled on top of internal/dispatch (spec component D):
// a thread-safe builder, finalization (checkpoint collapsing, cycle
// detection, access-class race validation), and a dispatch-backed
// executor.
//
// Grounded on the teacher's internal/workflows/workflow.go for its
// map-based definition/validation idiom (construct, Validate(), freeze) —
// that source is a CI-pipeline state machine, not a DAG, so the graph
// shape itself is original, built the way the teacher builds validated
// in-memory structures.
package workflow

import (
	"fmt"
	"sync"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// AccessClass is one of the three resource-access classes a node declares
// for a resource it touches.
type AccessClass int

const (
	AccessPopulation AccessClass = iota
	AccessView
	AccessModification
)

func (c AccessClass) String() string {
	switch c {
	case AccessPopulation:
		return "population"
	case AccessView:
		return "view"
	case AccessModification:
		return "modification"
	default:
		return "unknown"
	}
}

// Access pairs a resource name with the class of access a node declares
// against it.
type Access struct {
	Resource string
	Class    AccessClass
}

// NodeFunc is a workflow node's body. It receives a fresh NodeJob and must
// call Release on it, possibly after dispatching child tasks through the
// embedded dispatch.Job.
type NodeFunc func(job *NodeJob)

type nodeSpec struct {
	name         string
	fn           NodeFunc
	access       []Access
	dependsOn    []string
	dependencyOf []string
}

// NodeOption configures a node at AddNode time.
type NodeOption func(*nodeSpec)

// WithAccess declares the node's access class against a named resource.
func WithAccess(resource string, class AccessClass) NodeOption {
	return func(n *nodeSpec) {
		n.access = append(n.access, Access{Resource: resource, Class: class})
	}
}

// DependsOn declares that this node must run after every named node or
// checkpoint.
func DependsOn(names ...string) NodeOption {
	return func(n *nodeSpec) { n.dependsOn = append(n.dependsOn, names...) }
}

// DependencyOf declares that this node must run before every named node or
// checkpoint.
func DependencyOf(names ...string) NodeOption {
	return func(n *nodeSpec) { n.dependencyOf = append(n.dependencyOf, names...) }
}

// Builder accumulates nodes and checkpoint edges before Finalize emits an
// executable Graph. Node creation/submission is thread-safe;
// RegisterCheckpointDependency is not (spec §4.3.1).
type Builder struct {
	mu    sync.Mutex
	nodes map[string]*nodeSpec
	order []string // insertion order, for deterministic vertex numbering

	checkpointEdges [][2]string // [src, dst]: src depends on dst
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*nodeSpec)}
}

// AddNode registers a node under a unique name. Returns errs.ErrDuplicate
// if the name is already taken.
func (b *Builder) AddNode(name string, fn NodeFunc, opts ...NodeOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.nodes[name]; exists {
		return fmt.Errorf("workflow: node %q: %w", name, errs.ErrDuplicate)
	}

	spec := &nodeSpec{name: name, fn: fn}
	for _, opt := range opts {
		opt(spec)
	}
	b.nodes[name] = spec
	b.order = append(b.order, name)
	return nil
}

// RegisterCheckpointDependency records a symbolic edge: src depends on dst
// (dst must resolve before src, whether src/dst are node or checkpoint
// names). Not thread-safe, per spec §4.3.1.
func (b *Builder) RegisterCheckpointDependency(src, dst string) {
	b.checkpointEdges = append(b.checkpointEdges, [2]string{src, dst})
}

// Reset clears the builder so it can be reused, matching spec's
// "finalization resets the builder".
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = make(map[string]*nodeSpec)
	b.order = nil
	b.checkpointEdges = nil
}
