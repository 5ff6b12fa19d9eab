package timecode

import (
	"testing"
	"time"

	"github.com/streamforge/channelcore/pkg/core/format"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func pal() format.Desc {
	return format.Desc{
		Name:         "1080i5000",
		Width:        1920,
		Height:       1080,
		FPS:          format.Rational{Num: 25, Den: 1},
		SampleRate:   48000,
		AudioCadence: []int{1920},
	}
}

// A predict immediately followed by a commit against the same
// wall-clock instant yields the same frame number.
func TestTickPredictThenCommitAgree(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	c := NewChannel(pal(), SourceSystem).withClock(fixedClock(base))
	c.Start()

	clock := base.Add(40 * time.Millisecond)
	c.now = fixedClock(clock)

	predicted := c.Tick(false)
	committed := c.Tick(true)

	if predicted.Frames() != committed.Frames() {
		t.Fatalf("predict frame %d != commit frame %d", predicted.Frames(), committed.Frames())
	}
}

// Committed frame numbers never decrease, even if the wall clock
// itself regresses between ticks.
func TestTickNonDecreasingAcrossClockRegression(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	c := NewChannel(pal(), SourceSystem).withClock(fixedClock(base))
	c.Start()

	c.now = fixedClock(base.Add(200 * time.Millisecond))
	first := c.Tick(true)

	// wall clock jumps backward; frameForNow would compute a smaller
	// value than lastCommitted without the clamp.
	c.now = fixedClock(base.Add(40 * time.Millisecond))
	second := c.Tick(true)

	if second.Frames() <= first.Frames()-1 && second.Frames() != first.Frames()+1 {
		t.Fatalf("commit regressed: first=%d second=%d", first.Frames(), second.Frames())
	}
	if second.Frames() < first.Frames() {
		t.Fatalf("commit decreased: first=%d second=%d", first.Frames(), second.Frames())
	}
}

// A format change mid-run never causes the next committed frame to
// fall behind the last one.
func TestChangeFormatDoesNotRegress(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	c := NewChannel(pal(), SourceSystem).withClock(fixedClock(base))
	c.Start()

	c.now = fixedClock(base.Add(1 * time.Second))
	before := c.Tick(true)

	ntsc := format.Desc{
		Name:         "1080p2997",
		Width:        1920,
		Height:       1080,
		FPS:          format.Rational{Num: 30000, Den: 1001},
		SampleRate:   48000,
		AudioCadence: []int{1602, 1601, 1602, 1601, 1602},
	}
	c.ChangeFormat(ntsc)

	// same wall-clock instant as "before": the counter must continue
	// from the last committed frame, not fall behind it.
	after := c.Tick(true)

	if after.Frames() < before.Frames() {
		t.Fatalf("format change regressed frame number: before=%d after=%d", before.Frames(), after.Frames())
	}
}

func TestFrameForNowDayWrap(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	c := NewChannel(pal(), SourceSystem).withClock(fixedClock(base))
	c.Start()

	c.now = fixedClock(base.Add(25 * time.Hour))
	got := c.frameForNow()

	wantMs := int64((25 * time.Hour).Milliseconds() % millisPerDay)
	want := (wantMs*25 + 500) / 1000
	if got != want {
		t.Fatalf("frameForNow after day wrap = %d, want %d", got, want)
	}
}

func TestSourceNameStates(t *testing.T) {
	named := NewChannel(pal(), "clip-001")
	if got := named.SourceName(); got != "clip-001" {
		t.Fatalf("SourceName() = %q, want %q", got, "clip-001")
	}

	system := NewChannel(pal(), SourceSystem)
	if got := system.SourceName(); got != SourceSystem {
		t.Fatalf("SourceName() = %q, want %q", got, SourceSystem)
	}

	free := NewChannel(pal(), "")
	if got := free.SourceName(); got != SourceFree {
		t.Fatalf("SourceName() = %q, want %q", got, SourceFree)
	}
}

func TestTickBeforeStartReturnsFrameZero(t *testing.T) {
	c := NewChannel(pal(), SourceSystem)
	got := c.Tick(false)
	if got.Frames() != 0 {
		t.Fatalf("Tick before Start: frame = %d, want 0", got.Frames())
	}
}
