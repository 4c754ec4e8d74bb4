package resource

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/alloc"
	"github.com/catalystcommunity/enginecore/internal/dispatch"
	"github.com/catalystcommunity/enginecore/internal/errs"
	"github.com/catalystcommunity/enginecore/internal/metrics"
	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// UpdatedEvent is emitted whenever a request's outcome changes — the
// engine-native analogue of kan_resource_request_updated_event_t.
type UpdatedEvent struct {
	RequestID string
	Entry     *Entry
}

// Provider is the resource provider: the scanner/index (F), the
// reference-counted request state machine (G), and the hook point hot
// reload (H) invalidates through. It owns no network/VCS concerns — those
// belong to the teacher's dropped CI/CD packages — only the virtual-FS
// load pipeline.
type Provider struct {
	store objects.ObjectStore
	index *index
	pool  *dispatch.Pool
	group *alloc.Group

	loader Loader
	single singleflight.Group

	mu         sync.Mutex
	scan       scanStatus
	requests   map[string]*Request
	containers map[string]*Container

	onUpdated func(UpdatedEvent)
}

// New creates a Provider backed by store, deserializing native bytes
// through loader. pool is kept on the provider but loads are not
// dispatched through it: ServeTick runs each load on the calling
// goroutine. onUpdated, if non-nil, is called for every request-updated
// event.
func New(store objects.ObjectStore, pool *dispatch.Pool, loader Loader, group *alloc.Group, onUpdated func(UpdatedEvent)) *Provider {
	if group == nil {
		group = alloc.Root().Child("resource")
	}
	return &Provider{
		store:      store,
		index:      newIndex(group),
		pool:       pool,
		group:      group,
		loader:     loader,
		requests:   make(map[string]*Request),
		containers: make(map[string]*Container),
		onUpdated:  onUpdated,
	}
}

func (p *Provider) emit(ev UpdatedEvent) {
	metrics.RequestsServed.WithLabelValues("updated").Inc()
	if p.onUpdated != nil {
		p.onUpdated(ev)
	}
}

// InsertRequest creates a new, reference-counted request for (typeName,
// name). If the entry is already known, the request starts in awaiting
// (to be served on the next tick); otherwise it stays in new until a
// matching entry appears.
func (p *Provider) InsertRequest(ctx context.Context, typeName, name string, priority int) (*Request, error) {
	if priority < UserPriorityMin || priority > UserPriorityMax {
		return nil, fmt.Errorf("resource: priority %d out of range [%d,%d]: %w", priority, UserPriorityMin, UserPriorityMax, errs.ErrInvalidArgument)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	r := &Request{
		ID:       uuid.NewString(),
		TypeName: typeName,
		Name:     name,
		Priority: priority,
		ctx:      reqCtx,
		cancel:   cancel,
		state:    RequestNew,
	}

	p.mu.Lock()
	p.requests[r.ID] = r
	if _, ok := p.index.lookup(typeName, name); ok {
		r.state = RequestAwaiting
	}
	p.mu.Unlock()

	return r, nil
}

// DeleteRequest removes a request, releasing the underlying load. When the
// last request referencing a container is deleted, the container is
// freed.
func (p *Provider) DeleteRequest(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.requests[id]
	if !ok {
		return fmt.Errorf("resource: request %q: %w", id, errs.ErrNotFound)
	}
	r.cancel()
	r.state = RequestDeleted
	delete(p.requests, id)

	if r.outcome.ContainerID != "" {
		if c, ok := p.containers[r.outcome.ContainerID]; ok {
			c.refCount--
			if c.refCount <= 0 {
				delete(p.containers, c.ID)
				metrics.ContainersLive.Set(float64(len(p.containers)))
			}
		}
	}
	return nil
}

// GetContainer returns a live container by id.
func (p *Provider) GetContainer(id string) (*Container, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.containers[id]
	return c, ok
}

// notifyEntryAvailable transitions any "new" requests matching a freshly
// scanned entry into "awaiting".
func (p *Provider) notifyEntryAvailable(e *Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.requests {
		if r.state != RequestNew {
			continue
		}
		if r.Name != e.Name {
			continue
		}
		if e.Kind == EntryNative && r.TypeName != "" && r.TypeName != e.TypeName {
			continue
		}
		r.state = RequestAwaiting
	}
}

// ServeTick groups awaiting requests by (type,name) and serves the groups
// in descending order of their highest request priority. Every awaiting
// group is served within the one call; the tick has no time budget.
func (p *Provider) ServeTick(ctx context.Context) {
	groups := p.groupAwaiting()
	keys := make([]entryKey, 0, len(groups))
	prio := make(map[entryKey]int, len(groups))
	for key, reqs := range groups {
		keys = append(keys, key)
		prio[key] = UserPriorityMin
		for _, r := range reqs {
			if r.Priority > prio[key] {
				prio[key] = r.Priority
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return prio[keys[i]] > prio[keys[j]] })
	for _, key := range keys {
		p.serveGroup(ctx, key, groups[key])
	}
}

func (p *Provider) groupAwaiting() map[entryKey][]*Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	groups := make(map[entryKey][]*Request)
	for _, r := range p.requests {
		if r.state != RequestAwaiting {
			continue
		}
		e, ok := p.index.lookup(r.TypeName, r.Name)
		if !ok {
			continue
		}
		k := e.key()
		groups[k] = append(groups[k], r)
	}
	return groups
}

func (p *Provider) serveGroup(ctx context.Context, key entryKey, reqs []*Request) {
	e, ok := p.index.lookup(key.typeName, key.name)
	if !ok {
		return
	}

	maxPriority := UserPriorityMin
	for _, r := range reqs {
		if r.Priority > maxPriority {
			maxPriority = r.Priority
		}
	}

	// Requests sharing (type,name) coalesce onto one in-flight load.
	sfKey := fmt.Sprintf("%s\x00%s", key.typeName, key.name)
	_, _, _ = p.single.Do(sfKey, func() (interface{}, error) {
		p.loadEntry(ctx, e, reqs)
		return nil, nil
	})
}

func (p *Provider) loadEntry(ctx context.Context, e *Entry, reqs []*Request) {
	rc, err := p.store.Get(ctx, e.Path)
	if err != nil {
		logging.Log.WithField("path", e.Path).WithError(err).Warn("resource: load failed, leaving requests awaiting")
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logging.Log.WithField("path", e.Path).WithError(err).Warn("resource: read failed, leaving requests awaiting")
		return
	}

	if e.Kind == EntryThirdParty {
		p.publishThirdParty(e, reqs, data)
		return
	}

	payload, err := p.loader.Load(ctx, e.TypeName, data)
	if err != nil {
		logging.Log.WithField("path", e.Path).WithError(err).Warn("resource: deserialize failed, leaving requests awaiting")
		return
	}
	p.publishContainer(e, reqs, payload)
}

func (p *Provider) publishThirdParty(e *Entry, reqs []*Request, data []byte) {
	p.mu.Lock()
	for _, r := range reqs {
		r.state = RequestThirdPartyProvided
		r.outcome = Outcome{ThirdPartyData: data, ThirdPartySize: int64(len(data))}
	}
	p.mu.Unlock()
	metrics.RequestsServed.WithLabelValues("third_party").Inc()
	for _, r := range reqs {
		p.emit(UpdatedEvent{RequestID: r.ID, Entry: e})
	}
}

func (p *Provider) publishContainer(e *Entry, reqs []*Request, payload interface{}) {
	c := &Container{ID: uuid.NewString(), Group: e.Group, Payload: payload, refCount: len(reqs)}

	p.mu.Lock()
	p.containers[c.ID] = c
	for _, r := range reqs {
		r.state = RequestContainerProvided
		r.outcome = Outcome{ContainerID: c.ID}
	}
	p.mu.Unlock()

	metrics.RequestsServed.WithLabelValues("native").Inc()
	metrics.ContainersLive.Set(float64(len(p.containers)))
	for _, r := range reqs {
		p.emit(UpdatedEvent{RequestID: r.ID, Entry: e})
	}
}
