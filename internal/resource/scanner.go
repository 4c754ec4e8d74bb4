package resource

import (
	"context"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/objects"
)

// Scan walks every object in the store once, registering entries in the
// index, bounded by budget — a single call may return having only
// processed part of the store if the budget expires mid-walk. Scan keeps
// no cursor: a later call lists the store again and starts from the
// first object. Rejections (objects that fail to classify) are
// logged with a reason, satisfying the scanner-completeness testable
// property.
func (p *Provider) Scan(ctx context.Context, budget time.Duration) error {
	deadline := time.Now().Add(budget)

	entries, err := p.store.List(ctx, "")
	if err != nil {
		return err
	}

	for _, obj := range entries {
		if time.Now().After(deadline) {
			logging.Log.WithField("scanned", true).Debug("resource scan budget exhausted before the walk completed")
			return nil
		}
		if err := p.scanOne(ctx, obj); err != nil {
			logging.Log.WithField("path", obj.Key).WithError(err).Warn("resource scan: rejected object")
		}
	}

	p.mu.Lock()
	p.scan.done = true
	p.scan.requested = false
	p.mu.Unlock()
	return nil
}

func (p *Provider) scanOne(ctx context.Context, obj objects.ObjectInfo) error {
	kind, typeName, err := classify(ctx, p.store, obj.Key)
	if err != nil {
		return err
	}

	name := obj.Key
	e := &Entry{
		ID:       newEntryID(),
		Kind:     kind,
		TypeName: typeName,
		Name:     name,
		Path:     obj.Key,
		ByteSize: obj.Size,
		Group:    p.group,
	}
	p.index.register(e)
	p.index.recordScan(kind)
	p.notifyEntryAvailable(e)
	return nil
}

// RequestReset re-arms the scanner so the next Scan call performs a full
// walk again.
func (p *Provider) RequestReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scan.requested = true
	p.scan.done = false
}

// ScanDone reports whether the most recent scan ran to completion.
func (p *Provider) ScanDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scan.done
}
