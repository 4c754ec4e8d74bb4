package workflow

import (
	"fmt"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// vertex is a finalized, executable node.
type vertex struct {
	name         string
	fn           NodeFunc
	outbound     []int
	inboundCount int
}

// Graph is the finalized, stateless-between-executions runtime graph
// (spec §3.7): an array of vertices with precomputed outbound lists and
// inbound counts.
type Graph struct {
	vertices []*vertex
	index    map[string]int
}

// Describe renders a small DOT-ish text dump of the finalized graph, for
// debugging — grounded on the teacher's habit of JSON-dumping workflow
// state (internal/workflows/workflow.go's ToJSON).
func (g *Graph) Describe() string {
	out := "digraph workflow {\n"
	for _, v := range g.vertices {
		for _, o := range v.outbound {
			out += fmt.Sprintf("  %q -> %q;\n", v.name, g.vertices[o].name)
		}
	}
	out += "}\n"
	return out
}

// edgeSet is a simple adjacency map used only during finalization.
type edgeSet map[string]map[string]struct{}

func (e edgeSet) add(from, to string) {
	if e[from] == nil {
		e[from] = make(map[string]struct{})
	}
	e[from][to] = struct{}{}
}

func (e edgeSet) touchedNames() map[string]struct{} {
	names := make(map[string]struct{})
	for from, tos := range e {
		names[from] = struct{}{}
		for to := range tos {
			names[to] = struct{}{}
		}
	}
	return names
}

func (e edgeSet) predecessorsOf(name string) map[string]struct{} {
	preds := make(map[string]struct{})
	for from, tos := range e {
		if _, ok := tos[name]; ok {
			preds[from] = struct{}{}
		}
	}
	return preds
}

func (e edgeSet) removeNode(name string) {
	delete(e, name)
	for from := range e {
		delete(e[from], name)
	}
}

// Finalize performs, in order: explicit-edge resolution, checkpoint
// transitive collapsing, cycle detection, access-class race validation,
// and emission of the runtime graph (spec §4.3.2). The builder is reset
// afterward so it can be reused.
func (b *Builder) Finalize() (*Graph, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	edges := make(edgeSet)

	// Step 1: resolve explicit edges. depends_on(X) => edge X->node;
	// dependency_of(Y) => edge node->Y. Names not present in b.nodes
	// become checkpoints.
	for name, spec := range b.nodes {
		for _, dep := range spec.dependsOn {
			edges.add(dep, name)
		}
		for _, dep := range spec.dependencyOf {
			edges.add(name, dep)
		}
	}

	// register_checkpoint_dependency(src, dst): src depends on dst => edge
	// dst -> src.
	for _, ce := range b.checkpointEdges {
		src, dst := ce[0], ce[1]
		edges.add(dst, src)
	}

	// Step 2+3: transitively expand and collapse checkpoints — any name
	// in the edge set that isn't a real node is a checkpoint; repeatedly
	// splice its predecessors directly to its successors, then drop it.
	for {
		var checkpoint string
		found := false
		for name := range edges.touchedNames() {
			if _, isNode := b.nodes[name]; !isNode {
				checkpoint = name
				found = true
				break
			}
		}
		if !found {
			break
		}

		preds := edges.predecessorsOf(checkpoint)
		succs := edges[checkpoint]
		for p := range preds {
			for s := range succs {
				if p != checkpoint && s != checkpoint {
					edges.add(p, s)
				}
			}
		}
		edges.removeNode(checkpoint)
	}

	// Step 4: cycle check via DFS.
	if cyc := findCycle(b.order, edges); cyc != "" {
		return nil, fmt.Errorf("workflow: cycle detected at %q: %w", cyc, errs.ErrValidation)
	}

	// Step 5: access-class race validation.
	if err := validateAccessClasses(b.order, b.nodes, edges); err != nil {
		return nil, err
	}

	// Step 6: emit runtime graph.
	g := &Graph{index: make(map[string]int, len(b.order))}
	for i, name := range b.order {
		g.index[name] = i
	}
	g.vertices = make([]*vertex, len(b.order))
	for i, name := range b.order {
		g.vertices[i] = &vertex{name: name, fn: b.nodes[name].fn}
	}
	for from, tos := range edges {
		fi, ok := g.index[from]
		if !ok {
			continue
		}
		for to := range tos {
			ti, ok := g.index[to]
			if !ok {
				continue
			}
			g.vertices[fi].outbound = append(g.vertices[fi].outbound, ti)
			g.vertices[ti].inboundCount++
		}
	}

	b.nodes = make(map[string]*nodeSpec)
	b.order = nil
	b.checkpointEdges = nil

	return g, nil
}

// findCycle runs a DFS over edges restricted to known node names, returning
// the name at which a back-edge was found, or "" if the graph is acyclic.
func findCycle(order []string, edges edgeSet) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(order))
	for _, n := range order {
		color[n] = white
	}

	var cycleAt string
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		for to := range edges[n] {
			switch color[to] {
			case gray:
				cycleAt = to
				return true
			case white:
				if visit(to) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	for _, n := range order {
		if color[n] == white {
			if visit(n) {
				return cycleAt
			}
		}
	}
	return ""
}
