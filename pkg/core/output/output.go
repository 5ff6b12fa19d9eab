// Package output holds the consumer set a channel hands its mixed
// frame to every tick. Output.Tick is the pipeline's sole intentional
// blocking point: a slow consumer creates backpressure that the
// channel loop simply waits out.
package output

import (
	"fmt"
	"sync"

	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/frame"
	"github.com/streamforge/channelcore/pkg/core/timecode"
	"github.com/streamforge/channelcore/pkg/logger"
)

// Consumer receives the mixed frame for one tick. Consume may block to
// signal that it cannot yet accept another frame; that block is the
// pipeline's backpressure point.
type Consumer interface {
	Consume(tc timecode.FrameTimecode, mixed frame.Frame, fd format.Desc) error
}

// Output fans a mixed frame out to a set of consumers once per tick
// and reports its own fan-out summary as sub-state.
type Output interface {
	Tick(tc timecode.FrameTimecode, mixed frame.Frame, fd format.Desc)
	State() map[string]any
	Add(c Consumer)
	Remove(c Consumer)
}

// Default is the stock consumer set: a mutex-guarded list, ticked in
// registration order. A consumer whose Consume panics or errors
// is logged and skipped; it does not block the others that tick.
type Default struct {
	log *logger.Logger

	mu        sync.Mutex
	consumers []Consumer
	state     map[string]any
}

// New returns an empty Default output.
func New(log *logger.Logger) *Default {
	return &Default{log: log, state: map[string]any{}}
}

// Add registers c to receive every subsequent tick's mixed frame.
func (o *Default) Add(c Consumer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consumers = append(o.consumers, c)
}

// Remove unregisters c, if present.
func (o *Default) Remove(c Consumer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, existing := range o.consumers {
		if existing == c {
			o.consumers = append(o.consumers[:i], o.consumers[i+1:]...)
			return
		}
	}
}

// Tick hands the mixed frame to every consumer in registration order.
func (o *Default) Tick(tc timecode.FrameTimecode, mixed frame.Frame, fd format.Desc) {
	o.mu.Lock()
	consumers := make([]Consumer, len(o.consumers))
	copy(consumers, o.consumers)
	o.mu.Unlock()

	failed := 0
	for i, c := range consumers {
		if err := o.consume(c, tc, mixed, fd); err != nil {
			failed++
			if o.log != nil {
				o.log.Warn().Msgf("output: consumer %d failed: %v", i, err)
			}
		}
	}

	o.mu.Lock()
	o.state = map[string]any{"consumers": len(consumers), "failed": failed}
	o.mu.Unlock()
}

func (o *Default) consume(c Consumer, tc timecode.FrameTimecode, mixed frame.Frame, fd format.Desc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Consume(tc, mixed, fd)
}

// State returns the last tick's fan-out summary.
func (o *Default) State() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]any, len(o.state))
	for k, v := range o.state {
		out[k] = v
	}
	return out
}
