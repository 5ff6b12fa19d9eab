package timecode

import (
	"sync"
	"time"

	"github.com/streamforge/channelcore/pkg/core/format"
)

// millisPerDay bounds the frame counter: frames are derived from
// wall-clock milliseconds modulo one day, so a channel that runs for
// more than a day wraps its counter rather than overflowing. The
// non-decreasing clamp in Tick takes precedence over the wrap in
// practice: a wrapped value that would read as "less than last
// committed" is pushed forward instead of allowed to fall back. A
// long-lived channel that hits the wrap boundary will pin its counter
// at lastCommitted+1 per tick until Start is called again, which
// resets the epoch and the last committed value.
const millisPerDay = 1000 * 60 * 60 * 24

// Source names the states a ChannelTimecode can be stamped with.
// Only construction-time source selection is supported; SourceName
// can still report any of the known names since the type exists for
// producer-supplied sources too.
const (
	SourceFree   = "free"
	SourceSystem = "system"
)

// ChannelTimecode is the wall-clock-anchored, format-aware frame
// counter a Channel drives once per tick through its own
// predict/commit protocol: Tick(false) previews the frame number a
// producer should use, Tick(true) finalizes it.
//
// Zero value is not usable; construct with NewChannel.
type ChannelTimecode struct {
	mu sync.Mutex

	fd     format.Desc
	source string
	now    func() time.Time

	started       bool
	epoch         time.Time
	lastCommitted int64
	lastPredicted int64
}

// NewChannel returns a ChannelTimecode for the given initial format,
// stamped with source (e.g. "system", or a producer-supplied name). The
// clock is not anchored until Start is called.
func NewChannel(fd format.Desc, source string) *ChannelTimecode {
	return &ChannelTimecode{fd: fd, source: source, now: time.Now, lastCommitted: -1}
}

// withClock overrides the wall clock, used by tests that need a
// deterministic predict/commit sequence.
func (c *ChannelTimecode) withClock(now func() time.Time) *ChannelTimecode {
	c.now = now
	return c
}

// Start anchors the counter to the current wall clock. Frame 0
// corresponds to the instant Start is called.
func (c *ChannelTimecode) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = c.now()
	c.lastCommitted = -1
	c.started = true
}

// Tick advances the clock. commit=false computes and caches a
// predicted frame number without making it authoritative; commit=true
// re-reads the wall clock, finalizes the frame number, and stores it
// as the last committed value. Absent an intervening ChangeFormat,
// a predict immediately followed by a commit (no wall-clock advance
// between them, as in tests using a fixed clock) yields the same
// frame number.
func (c *ChannelTimecode) Tick(commit bool) FrameTimecode {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := c.frameForNow()
	if c.started && frame <= c.lastCommitted {
		frame = c.lastCommitted + 1
	}
	c.lastPredicted = frame
	if commit {
		c.lastCommitted = frame
	}
	return NewFrameTimecode(frame, roundFPS(c.fd.FPS), c.source)
}

// ChangeFormat rebases the counter onto a new format: once started and
// committed at least once, the epoch is moved so that the current
// instant maps to the last committed frame under the new rate. The next
// Tick therefore continues from there, and its non-decreasing clamp
// (see Tick) keeps external observers from seeing the counter jump
// backward, even across an fps change.
func (c *ChannelTimecode) ChangeFormat(fd format.Desc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fd = fd
	if !c.started || c.lastCommitted < 0 || fd.FPS.Num <= 0 || fd.FPS.Den <= 0 {
		return
	}
	offset := time.Duration(float64(c.lastCommitted) * float64(time.Second) * float64(fd.FPS.Den) / float64(fd.FPS.Num))
	c.epoch = c.now().Add(-offset)
}

// LastCommitted reports the most recently committed frame number, or
// -1 if no tick has been committed yet.
func (c *ChannelTimecode) LastCommitted() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCommitted
}

// SourceName reports the identifier of this clock's origin.
func (c *ChannelTimecode) SourceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == "" {
		return SourceFree
	}
	return c.source
}

func (c *ChannelTimecode) frameForNow() int64 {
	if !c.started {
		return 0
	}
	elapsed := c.now().Sub(c.epoch)
	ms := elapsed.Milliseconds() % millisPerDay
	if ms < 0 {
		ms += millisPerDay
	}
	fps := c.fd.FPS
	if fps.Den == 0 {
		return 0
	}
	// frames = round(ms * fps_num / (1000 * fps_den))
	num := ms * int64(fps.Num)
	den := 1000 * int64(fps.Den)
	return (num + den/2) / den
}

func roundFPS(r format.Rational) int {
	if r.Den == 0 {
		return 0
	}
	v := float64(r.Num) / float64(r.Den)
	return int(v + 0.5)
}
