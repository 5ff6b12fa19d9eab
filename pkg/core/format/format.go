// Package format describes a video mode: pixel geometry, frame rate
// and the audio sample cadence that integrates to an exact long-run
// sample rate.
package format

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// FieldMode describes the scanning mode of a video format.
type FieldMode int

const (
	Progressive FieldMode = iota
	UpperField
	LowerField
)

func (m FieldMode) String() string {
	switch m {
	case UpperField:
		return "upper"
	case LowerField:
		return "lower"
	default:
		return "progressive"
	}
}

// Rational is an exact frame rate expressed as a fraction, e.g. 30000/1001
// for NTSC 29.97.
type Rational struct {
	Num, Den int
}

// Float64 returns an approximation of the rate, for display purposes only.
// Exact comparisons must use the fraction form.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Desc is an immutable value describing one video mode. Two Desc values
// with equal fields are interchangeable; there is no notion of identity
// beyond the data itself.
type Desc struct {
	Name string

	Width, Height int
	Field         FieldMode

	FPS Rational

	SampleRate int

	// AudioCadence is a finite, ordered sequence of per-frame sample
	// counts whose sum, divided by its length, equals SampleRate/FPS.
	AudioCadence []int
}

// Validate checks the invariants a Desc must hold before it can be used
// by a channel: non-zero geometry, a well-formed frame rate, and exact
// cadence integration (sum(cadence)*fps_num == sample_rate*len(cadence)*fps_den).
func (d Desc) Validate() error {
	var errs *multierror.Error

	if d.Width <= 0 || d.Height <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("format %q: non-positive geometry %dx%d", d.Name, d.Width, d.Height))
	}
	if d.FPS.Num <= 0 || d.FPS.Den <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("format %q: invalid fps %s", d.Name, d.FPS))
	}
	if d.SampleRate <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("format %q: non-positive sample rate %d", d.Name, d.SampleRate))
	}
	if len(d.AudioCadence) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("format %q: empty audio cadence", d.Name))
	} else if d.FPS.Num > 0 && d.FPS.Den > 0 && d.SampleRate > 0 {
		sum := 0
		for _, n := range d.AudioCadence {
			if n <= 0 {
				errs = multierror.Append(errs, fmt.Errorf("format %q: non-positive cadence entry %d", d.Name, n))
			}
			sum += n
		}
		lhs := int64(sum) * int64(d.FPS.Num)
		rhs := int64(d.SampleRate) * int64(len(d.AudioCadence)) * int64(d.FPS.Den)
		if lhs != rhs {
			errs = multierror.Append(errs, fmt.Errorf(
				"format %q: cadence does not integrate exactly: sum(cadence)*fps_num=%d != sample_rate*len(cadence)*fps_den=%d",
				d.Name, lhs, rhs))
		}
	}

	return errs.ErrorOrNil()
}

// RotatedCadence returns a copy of the cadence vector with the last
// element moved to the front, i.e. the rotation the channel loop
// applies once per tick. The receiver is left untouched; callers own
// the mutable copy they rotate tick over tick.
func RotatedCadence(cadence []int) []int {
	n := len(cadence)
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	out[0] = cadence[n-1]
	copy(out[1:], cadence[:n-1])
	return out
}

// RotateInPlace rotates cadence by one position toward the front
// (last element becomes first) without allocating, mirroring the
// channel loop's own copy of the cadence vector across ticks.
func RotateInPlace(cadence []int) {
	n := len(cadence)
	if n < 2 {
		return
	}
	last := cadence[n-1]
	copy(cadence[1:], cadence[:n-1])
	cadence[0] = last
}

// Equal reports whether two descriptors describe the same video mode.
func Equal(a, b Desc) bool {
	if a.Name != b.Name || a.Width != b.Width || a.Height != b.Height || a.Field != b.Field ||
		a.FPS != b.FPS || a.SampleRate != b.SampleRate || len(a.AudioCadence) != len(b.AudioCadence) {
		return false
	}
	for i := range a.AudioCadence {
		if a.AudioCadence[i] != b.AudioCadence[i] {
			return false
		}
	}
	return true
}
