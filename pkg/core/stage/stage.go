// Package stage holds the per-layer producer set a channel drives once
// per tick, with per-layer panic isolation: one misbehaving layer
// degrades to an empty frame rather than failing the tick or clearing
// the other layers.
package stage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/frame"
	"github.com/streamforge/channelcore/pkg/logger"
)

// Producer drives one layer. Receive must return promptly; any
// long-running I/O is the producer's own responsibility to run
// off-thread, the tick loop does not parallelize across layers.
type Producer interface {
	Receive(fd format.Desc, nbSamples int) frame.Frame
}

// Stage produces the current tick's frames, publishes sub-state, and
// supports being cleared wholesale on format change.
type Stage interface {
	Tick(fd format.Desc, nbSamples int) map[int]frame.Frame
	State() map[string]any
	Clear()
}

// Default is the stock producer set: a map of layer id to Producer,
// ticked sequentially with per-layer recover isolation.
type Default struct {
	log *logger.Logger

	mu     sync.Mutex
	layers map[int]Producer
	state  map[string]any
}

// New returns an empty Default stage.
func New(log *logger.Logger) *Default {
	return &Default{log: log, layers: make(map[int]Producer), state: make(map[string]any)}
}

// Load installs producer at index, replacing whatever was there.
func (s *Default) Load(index int, producer Producer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[index] = producer
}

// Remove drops the producer at index, if any.
func (s *Default) Remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, index)
}

// Tick produces exactly one frame per currently active layer. A layer
// whose Receive panics contributes frame.Empty(index) instead of
// aborting the whole call; other layers are unaffected (spec scenario
// S5).
func (s *Default) Tick(fd format.Desc, nbSamples int) map[int]frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make(map[int]frame.Frame, len(s.layers))
	ids := make([]int, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	state := make(map[string]any, len(ids))
	for _, id := range ids {
		p := s.layers[id]
		f := s.receive(id, p, fd, nbSamples)
		frames[id] = f
		state[fmt.Sprintf("layer/%d", id)] = !f.IsEmpty()
	}
	s.state = state
	return frames
}

func (s *Default) receive(id int, p Producer, fd format.Desc, nbSamples int) (out frame.Frame) {
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.Warn().Msgf("stage: layer %d panicked: %v", id, r)
			}
			out = frame.Empty(id)
		}
	}()
	out = p.Receive(fd, nbSamples)
	return
}

// State returns the last tick's per-layer activity snapshot.
func (s *Default) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// Clear removes every layer. Invoked on format change.
func (s *Default) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = make(map[int]Producer)
	s.state = make(map[string]any)
}
