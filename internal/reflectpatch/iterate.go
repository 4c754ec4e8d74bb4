package reflectpatch

// NodeKind distinguishes a section node from a chunk node during
// iteration.
type NodeKind int

const (
	NodeSection NodeKind = iota
	NodeChunk
)

// Node is one emitted item — either a section or a chunk — reported by
// the iterator in emission order (spec §4.4 "Iteration").
type Node struct {
	Kind NodeKind

	// Valid when Kind == NodeSection.
	SectionID       int
	SectionParentID int
	SectionKind     SectionKind
	SectionField    string

	// Valid when Kind == NodeChunk.
	ChunkSectionID int
	ChunkField     string
	ChunkIndex     int
	ChunkValue     interface{}
}

// Iterator walks a Patch's sections and chunks in emission order.
type Iterator struct {
	nodes []Node
	pos   int
}

// Begin returns an iterator positioned before the first node.
func (p *Patch) Begin() *Iterator {
	var nodes []Node
	for _, sid := range p.sectionIDs {
		if sid != RootSection {
			s := p.sections[sid]
			nodes = append(nodes, Node{
				Kind:            NodeSection,
				SectionID:       s.id,
				SectionParentID: s.parentID,
				SectionKind:     s.kind,
				SectionField:    s.field,
			})
		}
		for _, c := range p.chunks[sid] {
			nodes = append(nodes, Node{
				Kind:           NodeChunk,
				ChunkSectionID: sid,
				ChunkField:     c.field,
				ChunkIndex:     c.index,
				ChunkValue:     c.value,
			})
		}
	}
	return &Iterator{nodes: nodes, pos: -1}
}

// Next advances the iterator and reports whether a node is available.
func (it *Iterator) Next() bool {
	if it.pos+1 >= len(it.nodes) {
		it.pos = len(it.nodes)
		return false
	}
	it.pos++
	return true
}

// End reports whether iteration has been exhausted.
func (it *Iterator) End() bool { return it.pos >= len(it.nodes) }

// Get returns the node at the iterator's current position.
func (it *Iterator) Get() Node { return it.nodes[it.pos] }
