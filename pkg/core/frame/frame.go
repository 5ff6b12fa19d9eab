// Package frame defines the per-tick payload that flows from stage
// through mixer to output and out to routes: a composited image plus
// the audio samples belonging to that tick's cadence slot.
package frame

import (
	"image"
	"image/draw"
	"sort"
)

// Frame is a draw-frame value: an image plus the audio samples
// produced alongside it. The zero Frame (nil Image) is the empty frame
// substituted for a layer that failed to produce.
type Frame struct {
	Layer int
	Image *image.RGBA
	Audio []float32
}

// Empty returns the frame substituted for a layer that failed to
// produce, or for a tick with no active layers.
func Empty(layer int) Frame { return Frame{Layer: layer} }

// IsEmpty reports whether f carries no image payload.
func (f Frame) IsEmpty() bool { return f.Image == nil }

// Pop returns a copy of f detached from whatever buffer the producer
// or mixer used to build it, safe for a route holder to retain beyond
// the tick that produced it.
func (f Frame) Pop() Frame {
	if f.Image == nil {
		return f
	}
	img := image.NewRGBA(f.Image.Bounds())
	copy(img.Pix, f.Image.Pix)
	return Frame{Layer: f.Layer, Image: img, Audio: append([]float32(nil), f.Audio...)}
}

// Composite builds the whole-channel frame signalled to route -1: the
// producer map's images stacked in ascending layer-id order onto a
// canvas sized by the first non-empty frame, and every layer's audio
// concatenated in the same order. It does not mix pixels — that is the
// Mixer's job — it exists only to give the channel-wide route
// something representative of "everything produced this tick".
func Composite(frames map[int]Frame) Frame {
	ids := make([]int, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out Frame
	out.Layer = -1
	for _, id := range ids {
		f := frames[id]
		if f.IsEmpty() {
			continue
		}
		if out.Image == nil {
			out.Image = image.NewRGBA(f.Image.Bounds())
		}
		draw.Draw(out.Image, out.Image.Bounds(), f.Image, f.Image.Bounds().Min, draw.Over)
		out.Audio = append(out.Audio, f.Audio...)
	}
	return out
}
