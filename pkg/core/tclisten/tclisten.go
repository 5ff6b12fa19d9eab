// Package tclisten implements the timecode listener registry: callbacks
// invoked once per committed tick, in registration order, each
// unregistered by a returned scoped token.
package tclisten

import (
	"runtime"
	"sort"
	"sync"

	"github.com/streamforge/channelcore/pkg/core/diagnostics"
	"github.com/streamforge/channelcore/pkg/core/timecode"
)

// Listener is invoked once per committed tick with the just-committed
// timecode and the channel's diagnostics graph.
type Listener func(tc timecode.FrameTimecode, graph *diagnostics.Graph)

// CancellationToken unregisters its listener when Cancel is called.
// Calling Cancel more than once, or letting the token go unused, is
// safe: a GC-time cleanup (see Registry.Add) unregisters it anyway if
// the token is dropped without an explicit Cancel.
type CancellationToken struct {
	cancel func()
	once   sync.Once
}

// Cancel unregisters the listener this token was returned for. Safe to
// call multiple times or never.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
}

// Registry is the channel's listener table.
type Registry struct {
	mu        sync.Mutex
	nextID    int64
	listeners map[int64]Listener
}

// New returns an empty listener registry.
func New() *Registry { return &Registry{listeners: make(map[int64]Listener)} }

// Add assigns a fresh monotonically-increasing id to listener and
// registers it, returning a token that unregisters it. As a
// belt-and-suspenders measure, a runtime.AddCleanup hook unregisters
// the listener too if the caller drops the token without calling
// Cancel.
func (reg *Registry) Add(listener Listener) *CancellationToken {
	reg.mu.Lock()
	id := reg.nextID
	reg.nextID++
	reg.listeners[id] = listener
	reg.mu.Unlock()

	token := &CancellationToken{cancel: func() { reg.remove(id) }}
	runtime.AddCleanup(token, func(id int64) { reg.remove(id) }, id)
	return token
}

func (reg *Registry) remove(id int64) {
	reg.mu.Lock()
	delete(reg.listeners, id)
	reg.mu.Unlock()
}

// Invoke snapshots the listener map under lock, releases it, then
// calls each listener in ascending id (insertion) order. Invoke
// recovers per listener and reports the panic to onPanic (the caller
// logs it there), so one failure never prevents the rest from running.
func (reg *Registry) Invoke(tc timecode.FrameTimecode, graph *diagnostics.Graph, onPanic func(id int64, r any)) {
	reg.mu.Lock()
	ids := make([]int64, 0, len(reg.listeners))
	snapshot := make(map[int64]Listener, len(reg.listeners))
	for id, l := range reg.listeners {
		ids = append(ids, id)
		snapshot[id] = l
	}
	reg.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		invokeOne(id, snapshot[id], tc, graph, onPanic)
	}
}

func invokeOne(id int64, l Listener, tc timecode.FrameTimecode, graph *diagnostics.Graph, onPanic func(id int64, r any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(id, r)
		}
	}()
	l(tc, graph)
}

// Len reports how many listeners are currently registered.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.listeners)
}
