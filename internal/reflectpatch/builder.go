// Package reflectpatch implements the reflection-patch apply engine (spec
// component E): an immutable, ordered set of chunks/sections that mutates
// a typed target instance.
//
// The original's custom reflection meta-language is explicitly out of
// scope (spec §1 Non-goals: "does not define the reflection
// meta-language"), so this package addresses target fields by declared
// name through Go's own reflect package rather than raw byte offsets —
// the idiomatic Go stand-in for a hand-rolled C type registry. Sections
// still carry a parent/kind/field triple exactly as spec §3.11 describes;
// "offset-in-parent" is the declared field name rather than a byte offset,
// since Go's reflect.StructField.Offset is an implementation detail of the
// compiler's layout, not a stable addressing scheme a patch should pin to.
package reflectpatch

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// SectionKind is one of the two ways a section addresses a dynamic array.
type SectionKind int

const (
	// ArraySet sections address specific element indices directly.
	ArraySet SectionKind = iota
	// ArrayAppend sections reserve one new element and address fields
	// within it; chunk indices are ignored for this kind.
	ArrayAppend
)

// RootSection is the implicit id-0 section addressing the target's own
// fields.
const RootSection = 0

type sectionBuild struct {
	id       int
	parentID int
	kind     SectionKind
	field    string
}

type chunkBuild struct {
	sectionID int
	field     string // scalar field within the addressed element; "" means the element itself
	index     int    // element index, meaningful only for ArraySet
	value     interface{}
}

// Builder accumulates sections and chunks before Build emits an immutable
// Patch.
type Builder struct {
	targetType    reflect.Type
	sections      []sectionBuild
	chunks        []chunkBuild
	nextSectionID int
}

// NewBuilder creates a patch builder for the given zero-value target
// instance's type.
func NewBuilder(target interface{}) *Builder {
	t := reflect.TypeOf(target)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return &Builder{targetType: t, nextSectionID: 1}
}

// DeclareSection registers a section addressing the named slice field of
// its parent's target (parentID 0 means "a field of the root struct").
// Returns the new section's id.
func (b *Builder) DeclareSection(parentID int, kind SectionKind, field string) int {
	id := b.nextSectionID
	b.nextSectionID++
	b.sections = append(b.sections, sectionBuild{id: id, parentID: parentID, kind: kind, field: field})
	return id
}

// AddChunk adds a chunk to a previously declared section (or RootSection).
// field addresses a scalar field within the section's element ("" for the
// element itself); index is the element position and is only meaningful
// for ArraySet sections.
func (b *Builder) AddChunk(sectionID int, field string, index int, value interface{}) {
	b.chunks = append(b.chunks, chunkBuild{sectionID: sectionID, field: field, index: index, value: value})
}

// forbiddenRootKinds are the archetypes spec §4.4 forbids as direct chunk
// targets at the root: slices ("dynamic-array"), pointers
// ("string-pointer"/"struct-pointer"), and nested patches. Accessing them
// requires declaring a section of the appropriate kind instead.
func forbiddenRootKinds(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Ptr
}

// Build normalizes the accumulated sections and chunks into an immutable
// Patch: sections with equal (parent, kind, field) are merged (step 1);
// chunks within a section are sorted and later writes win on overlap
// (step 2); the result is assigned stable ids (step 3).
func (b *Builder) Build() (*Patch, error) {
	// Step 1: section deduplication, building an id-remap table.
	type key struct {
		parent int
		kind   SectionKind
		field  string
	}
	merged := make(map[key]int) // key -> canonical id
	remap := map[int]int{RootSection: RootSection}
	canonical := map[int]sectionBuild{RootSection: {id: RootSection}}

	// Sections must be remapped in declaration order so a child's
	// parentID (itself possibly already remapped) resolves correctly.
	for _, s := range b.sections {
		parent := remap[s.parentID]
		k := key{parent: parent, kind: s.kind, field: s.field}
		if existing, ok := merged[k]; ok {
			remap[s.id] = existing
			continue
		}
		merged[k] = s.id
		remap[s.id] = s.id
		canonical[s.id] = sectionBuild{id: s.id, parentID: parent, kind: s.kind, field: s.field}
	}

	// Step 2: normalize chunks per section — remap, validate, then sort
	// with later writes winning on overlap (stable sort preserves
	// insertion order for the final value at each (field,index) key).
	type chunkKey struct {
		field string
		index int
	}
	bySection := make(map[int][]chunkBuild)
	for _, c := range b.chunks {
		sid, ok := remap[c.sectionID]
		if !ok {
			return nil, fmt.Errorf("reflectpatch: chunk references unknown section %d: %w", c.sectionID, errs.ErrInvalidArgument)
		}
		if sid == RootSection {
			f, ok := b.targetType.FieldByName(c.field)
			if !ok {
				return nil, fmt.Errorf("reflectpatch: unknown root field %q: %w", c.field, errs.ErrInvalidArgument)
			}
			if forbiddenRootKinds(f.Type.Kind()) {
				return nil, fmt.Errorf(
					"reflectpatch: field %q has archetype %s; declare a section to address it: %w",
					c.field, f.Type.Kind(), errs.ErrValidation,
				)
			}
		}
		c.sectionID = sid
		bySection[sid] = append(bySection[sid], c)
	}

	normalized := make(map[int][]chunkBuild, len(bySection))
	for sid, chunks := range bySection {
		latest := make(map[chunkKey]chunkBuild, len(chunks))
		var order []chunkKey
		for _, c := range chunks {
			k := chunkKey{field: c.field, index: c.index}
			if _, exists := latest[k]; !exists {
				order = append(order, k)
			}
			latest[k] = c // later write wins
		}
		sort.Slice(order, func(i, j int) bool {
			if order[i].index != order[j].index {
				return order[i].index < order[j].index
			}
			return order[i].field < order[j].field
		})
		out := make([]chunkBuild, len(order))
		for i, k := range order {
			out[i] = latest[k]
		}
		normalized[sid] = out
	}

	sectionIDs := make([]int, 0, len(canonical))
	for id := range canonical {
		sectionIDs = append(sectionIDs, id)
	}
	sort.Ints(sectionIDs)

	return &Patch{
		targetType: b.targetType,
		sections:   canonical,
		sectionIDs: sectionIDs,
		chunks:     normalized,
	}, nil
}
