package alloc

import (
	"runtime"
	"sync/atomic"
)

// spinLock is an atomic-int spin lock (spec §5: "atomic-int spin locks
// guard: ... batched-allocator per-size lists ..."). It is intentionally
// not a sync.Mutex: the contract calls for a brief, lock-free-until-
// contended primitive, not OS-level blocking.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
