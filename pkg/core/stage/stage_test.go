package stage

import (
	"image"
	"testing"

	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/frame"
)

func pal() format.Desc {
	return format.Desc{
		Name: "1080i5000", Width: 4, Height: 4,
		FPS: format.Rational{Num: 25, Den: 1}, SampleRate: 48000,
		AudioCadence: []int{1920},
	}
}

type fixedProducer struct {
	layer int
	panic bool
}

func (p *fixedProducer) Receive(fd format.Desc, nbSamples int) frame.Frame {
	if p.panic {
		panic("producer exploded")
	}
	return frame.Frame{
		Layer: p.layer,
		Image: image.NewRGBA(image.Rect(0, 0, fd.Width, fd.Height)),
		Audio: make([]float32, nbSamples),
	}
}

func TestTickProducesOneFramePerLayer(t *testing.T) {
	s := New(nil)
	s.Load(0, &fixedProducer{layer: 0})
	s.Load(2, &fixedProducer{layer: 2})

	frames := s.Tick(pal(), 1920)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Layer != 0 || frames[2].Layer != 2 {
		t.Fatal("frames keyed by the wrong layer id")
	}
}

// S5: a panicking layer degrades to an empty frame instead of aborting
// the tick; other layers are unaffected.
func TestTickIsolatesPanickingLayer(t *testing.T) {
	s := New(nil)
	s.Load(0, &fixedProducer{layer: 0})
	s.Load(1, &fixedProducer{layer: 1, panic: true})

	frames := s.Tick(pal(), 1920)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames despite the panic, got %d", len(frames))
	}
	if !frames[1].IsEmpty() {
		t.Fatal("panicking layer should contribute an empty frame")
	}
	if frames[0].IsEmpty() {
		t.Fatal("the non-panicking layer should not be affected")
	}
}

func TestRemoveDropsLayer(t *testing.T) {
	s := New(nil)
	s.Load(0, &fixedProducer{layer: 0})
	s.Remove(0)

	frames := s.Tick(pal(), 1920)
	if len(frames) != 0 {
		t.Fatalf("expected no frames after Remove, got %d", len(frames))
	}
}

func TestClearRemovesAllLayersAndState(t *testing.T) {
	s := New(nil)
	s.Load(0, &fixedProducer{layer: 0})
	s.Tick(pal(), 1920)

	s.Clear()
	if len(s.State()) != 0 {
		t.Fatal("expected empty state after Clear")
	}
	if frames := s.Tick(pal(), 1920); len(frames) != 0 {
		t.Fatalf("expected no frames after Clear, got %d", len(frames))
	}
}

func TestStateReflectsLayerActivity(t *testing.T) {
	s := New(nil)
	s.Load(0, &fixedProducer{layer: 0})
	s.Load(1, &fixedProducer{layer: 1, panic: true})
	s.Tick(pal(), 1920)

	state := s.State()
	if state["layer/0"] != true {
		t.Fatal("expected layer 0 to report active")
	}
	if state["layer/1"] != false {
		t.Fatal("expected layer 1 to report inactive after its panic")
	}
}
