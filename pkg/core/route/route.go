// Package route implements the channel's weak-referenced route
// registry: per-layer (and whole-channel, layer -1) subscriber taps
// that the channel observes without extending their lifetime.
package route

import (
	"fmt"
	"sort"
	"sync"
	"weak"

	"github.com/streamforge/channelcore/pkg/core/frame"
	"github.com/streamforge/channelcore/pkg/network"
)

// ChannelLayer is the reserved layer id denoting the whole composited
// channel output rather than one producer layer.
const ChannelLayer = -1

// Route is a passive subscriber. A holder reads signalled frames off
// Frames(); the channel never blocks waiting for that read — Signal
// drops the frame if the holder isn't keeping up, since a route is a
// monitoring tap, not a guaranteed-delivery consumer.
type Route struct {
	id    network.Uid
	layer int
	ch    chan frame.Frame
}

func newRoute(layer int) *Route {
	return &Route{id: network.NewUid(), layer: layer, ch: make(chan frame.Frame, 1)}
}

// Tag names the route the way an operator would reference it in a
// route list: "channel[<short uid>]" for the whole-channel route,
// "layer[<n>/<short uid>]" for a per-layer one (see network.Uid.Short).
func (r *Route) Tag() string {
	if r.layer == ChannelLayer {
		return fmt.Sprintf("channel[%s]", r.id.Short())
	}
	return fmt.Sprintf("layer[%d/%s]", r.layer, r.id.Short())
}

// Layer reports the id this route was created for.
func (r *Route) Layer() int { return r.layer }

// Frames exposes the channel this route's holder should read from.
func (r *Route) Frames() <-chan frame.Frame { return r.ch }

// signal delivers f without blocking: if the holder's buffer is full,
// the frame is dropped, favoring a live pipeline over a backed-up one.
func (r *Route) signal(f frame.Frame) {
	select {
	case r.ch <- f:
	default:
	}
}

// Registry is the channel's route table: route(layer_id) -> Route
// (strong, returned to the caller), stored internally only as a weak
// reference. Dead entries are not proactively reaped; they are cheap
// and simply overwritten on the next Route(id) call.
type Registry struct {
	mu     sync.Mutex
	routes map[int]weak.Pointer[Route]
}

// New returns an empty route registry.
func New() *Registry { return &Registry{routes: make(map[int]weak.Pointer[Route])} }

// Route returns the currently-alive route for layerID, creating one on
// first request. Idempotent while a strong reference to the previous
// route survives somewhere.
func (reg *Registry) Route(layerID int) *Route {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if wp, ok := reg.routes[layerID]; ok {
		if r := wp.Value(); r != nil {
			return r
		}
	}
	r := newRoute(layerID)
	reg.routes[layerID] = weak.Make(r)
	return r
}

// Dispatch signals the routes alive for this tick's producer map: each
// present layer's route gets the popped, detached form of its frame;
// the whole-channel route gets a composite of every produced frame, in
// ascending layer order. Dead or absent routes are silently skipped; a
// route whose holder has stopped reading simply drops the frame (see
// signal).
func (reg *Registry) Dispatch(frames map[int]frame.Frame) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	ids := make([]int, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		wp, ok := reg.routes[id]
		if !ok {
			continue
		}
		if r := wp.Value(); r != nil {
			safeSignal(r, frames[id].Pop())
		}
	}

	if wp, ok := reg.routes[ChannelLayer]; ok {
		if r := wp.Value(); r != nil {
			safeSignal(r, frame.Composite(frames))
		}
	}
}

// safeSignal swallows any panic from signal: one misbehaving holder's
// unexpected state must not interrupt the rest of the tick's route
// fan-out.
func safeSignal(r *Route, f frame.Frame) {
	defer func() { _ = recover() }()
	r.signal(f)
}

// Len reports how many layer ids currently have a table entry (alive
// or not), for diagnostics and tests.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.routes)
}
