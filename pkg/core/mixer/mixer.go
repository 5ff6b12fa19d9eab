// Package mixer composites a tick's per-layer frames into one frame.
// A real deployment can swap in a GPU-backed compositor behind the
// same Mixer interface; this package is the software fallback.
package mixer

import (
	"image"
	stddraw "image/draw"
	"sort"
	"sync"

	"golang.org/x/image/draw"

	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/frame"
)

// Mixer composites a producer frame map into one output frame and
// publishes sub-state. Implementations must be deterministic: the same
// inputs must yield a bit-identical output image.
type Mixer interface {
	Mix(frames map[int]frame.Frame, fd format.Desc, nbSamples int) frame.Frame
	State() map[string]any
}

// Default is the stock software compositor: scales any layer whose
// geometry does not match fd with golang.org/x/image/draw's bilinear
// scaler, then composites top of ascending layer order over bottom
// with image/draw's Over operator.
type Default struct {
	mu    sync.Mutex
	state map[string]any
}

// New returns a ready Default mixer.
func New() *Default { return &Default{state: map[string]any{}} }

// Mix composites frames in ascending layer-id order onto a canvas
// sized by fd, and sums their audio sample-by-sample into nbSamples
// samples (see mixAudio).
func (m *Default) Mix(frames map[int]frame.Frame, fd format.Desc, nbSamples int) frame.Frame {
	canvas := image.NewRGBA(image.Rect(0, 0, fd.Width, fd.Height))

	ids := make([]int, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	composited := 0
	for _, id := range ids {
		f := frames[id]
		if f.IsEmpty() {
			continue
		}
		src := f.Image
		if src.Bounds().Dx() != fd.Width || src.Bounds().Dy() != fd.Height {
			scaled := image.NewRGBA(canvas.Bounds())
			draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Over, nil)
			src = scaled
		}
		stddraw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, stddraw.Over)
		composited++
	}

	audio := mixAudio(frames, ids, nbSamples)

	m.mu.Lock()
	m.state = map[string]any{"layers-composited": composited, "samples": len(audio)}
	m.mu.Unlock()

	return frame.Frame{Layer: -1, Image: canvas, Audio: audio}
}

// mixAudio sums each layer's audio sample-by-sample (a simple additive
// mix, clipped to +/-1), sized to nbSamples.
func mixAudio(frames map[int]frame.Frame, ids []int, nbSamples int) []float32 {
	if nbSamples <= 0 {
		return nil
	}
	out := make([]float32, nbSamples)
	for _, id := range ids {
		a := frames[id].Audio
		for i := 0; i < len(a) && i < nbSamples; i++ {
			out[i] += a[i]
		}
	}
	for i, v := range out {
		switch {
		case v > 1:
			out[i] = 1
		case v < -1:
			out[i] = -1
		}
	}
	return out
}

// State returns the last Mix call's sub-state.
func (m *Default) State() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out
}
