// Package resource implements the resource provider: a scanner and index over a virtual file system, a
// reference-counted request state machine, and an fsnotify-backed
// hot-reload watcher.
//
// The virtual file system is internal/objects.ObjectStore (the teacher's
// internal/objects package, kept and adapted): *.bin/*.rd/other-extension
// classification scans whichever store backs the provider. Deserializing
// native resource bytes into engine-specific types is explicitly an
// external collaborator — this package carries the bytes and
// the declared type name through to the container, and leaves
// deserialization to a caller-supplied Loader.
package resource

import (
	"context"
	"time"

	"github.com/catalystcommunity/enginecore/internal/alloc"
)

// User-facing request-priority bounds. The
// reserved internal range is explicitly out of scope.
const (
	UserPriorityMin = 0
	UserPriorityMax = 100
)

// EntryKind distinguishes the two resource-entry record kinds.
type EntryKind int

const (
	EntryNative EntryKind = iota
	EntryThirdParty
)

// Entry is a resource-entry record owned by the provider. Native entries
// are keyed (type, name); third-party entries are keyed by name alone.
type Entry struct {
	ID       string
	Kind     EntryKind
	TypeName string // native only
	Name     string
	Path     string
	ByteSize int64 // third-party only
	Group    *alloc.Group
}

func (e Entry) key() entryKey {
	if e.Kind == EntryNative {
		return entryKey{typeName: e.TypeName, name: e.Name}
	}
	return entryKey{name: e.Name}
}

type entryKey struct {
	typeName string
	name     string
}

// RequestState is one of the states a Request moves through.
type RequestState int

const (
	RequestNew RequestState = iota
	RequestAwaiting
	RequestContainerProvided
	RequestThirdPartyProvided
	RequestDeleted
)

// Outcome holds a request's resolved payload: either a container id
// (native) or a raw byte blob (third-party).
type Outcome struct {
	ContainerID       string
	ThirdPartyData    []byte
	ThirdPartySize    int64
}

// Request is a reference-counted handle to a desired resource load.
type Request struct {
	ID       string
	TypeName string // empty means "any"/third-party
	Name     string
	Priority int

	ctx    context.Context
	cancel context.CancelFunc

	state   RequestState
	outcome Outcome
}

// Context returns a context derived from the repository, canceled when the
// request is deleted, so cancellation composes with the dispatcher's job
// cancellation contract (SPEC_FULL §3 supplement).
func (r *Request) Context() context.Context { return r.ctx }

// State returns the request's current state.
func (r *Request) State() RequestState { return r.state }

// Outcome returns the request's resolved outcome. Zero value until the
// request reaches a provided state.
func (r *Request) Outcome() Outcome { return r.outcome }

// Container is a typed, heap-allocated block owning one deserialized
// native resource. Go's GC plays the role of the owning
// arena; Payload holds whatever the Loader produced.
type Container struct {
	ID      string
	Group   *alloc.Group
	Payload interface{}

	refCount int
}

// scanStatus records whether the provider's most recent scan ran to
// completion (read by ScanDone). It is re-armed by RequestReset.
type scanStatus struct {
	done      bool
	requested bool
}

// Loader deserializes a native resource's raw bytes into a payload. The
// provider calls it once per native load; in production this would be the
// engine's binary/readable-data deserializer (out of scope here).
type Loader interface {
	Load(ctx context.Context, typeName string, data []byte) (interface{}, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, typeName string, data []byte) (interface{}, error)

func (f LoaderFunc) Load(ctx context.Context, typeName string, data []byte) (interface{}, error) {
	return f(ctx, typeName, data)
}

// budgets pairs a scanner-tick and a serve-tick duration. Nothing in the
// package reads it; Scan takes its budget as an argument.
type budgets struct {
	scan  time.Duration
	serve time.Duration
}
