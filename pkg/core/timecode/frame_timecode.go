// Package timecode implements FrameTimecode, a monotonic frame
// counter with a canonical HH:MM:SS:FF textual form, and
// ChannelTimecode, the wall-clock-anchored predict/commit clock a
// video channel drives once per tick.
package timecode

import "fmt"

// FrameTimecode is a frame counter plus the format's fps, sufficient
// to render a canonical HH:MM:SS:FF string. It is a plain value type:
// copying it is always safe and cheap.
type FrameTimecode struct {
	frame int64
	fps   int

	// source identifies the clock origin this value was stamped by,
	// e.g. "system", "free", or a named external source.
	source string
}

// Empty is the zero FrameTimecode, marking "no timecode available".
var Empty = FrameTimecode{fps: 0}

// NewFrameTimecode builds a FrameTimecode for the given absolute frame
// number at fps frames per second, stamped with source.
func NewFrameTimecode(frame int64, fps int, source string) FrameTimecode {
	return FrameTimecode{frame: frame, fps: fps, source: source}
}

func (t FrameTimecode) IsValid() bool { return t.fps > 0 }

func (t FrameTimecode) Frames() int64 { return t.frame }

func (t FrameTimecode) SourceName() string { return t.source }

// String renders the canonical HH:MM:SS:FF form. An invalid timecode
// renders as "--:--:--:--".
func (t FrameTimecode) String() string {
	if !t.IsValid() {
		return "--:--:--:--"
	}
	fps := int64(t.fps)
	totalSeconds := t.frame / fps
	ff := t.frame % fps
	hh := (totalSeconds / 3600) % 24
	mm := (totalSeconds / 60) % 60
	ss := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hh, mm, ss, ff)
}
