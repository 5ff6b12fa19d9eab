package timecode

import "testing"

func TestFrameTimecodeStringFormatsHHMMSSFF(t *testing.T) {
	// 25fps, frame 2705: 108 seconds, 5 left over frames -> 00:01:48:05
	tc := NewFrameTimecode(2705, 25, SourceSystem)
	if got, want := tc.String(), "00:01:48:05"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestFrameTimecodeStringWrapsHoursMod24(t *testing.T) {
	tc := NewFrameTimecode(25*3600*25, 25, SourceSystem)
	if got, want := tc.String(), "01:00:00:00"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestEmptyTimecodeIsInvalid(t *testing.T) {
	if Empty.IsValid() {
		t.Fatal("Empty.IsValid() = true, want false")
	}
	if got, want := Empty.String(), "--:--:--:--"; got != want {
		t.Fatalf("Empty.String() = %q, want %q", got, want)
	}
}

func TestFrameTimecodeSourceName(t *testing.T) {
	tc := NewFrameTimecode(0, 25, "clip-001")
	if got, want := tc.SourceName(), "clip-001"; got != want {
		t.Fatalf("SourceName() = %q, want %q", got, want)
	}
}
