package tclisten

import (
	"runtime"
	"testing"

	"github.com/streamforge/channelcore/pkg/core/diagnostics"
	"github.com/streamforge/channelcore/pkg/core/timecode"
)

func TestInvokeCallsListenersInInsertionOrder(t *testing.T) {
	reg := New()
	var order []int

	t1 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { order = append(order, 1) })
	defer t1.Cancel()
	t2 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { order = append(order, 2) })
	defer t2.Cancel()

	reg.Invoke(timecode.NewFrameTimecode(0, 25, ""), diagnostics.New(0, nil), nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("listeners invoked out of order: %v", order)
	}
}

// S3: drop L1's token, L2 keeps firing.
func TestCancelRemovesOnlyThatListener(t *testing.T) {
	reg := New()
	var calls []int

	t1 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { calls = append(calls, 1) })
	t2 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { calls = append(calls, 2) })
	defer t2.Cancel()

	reg.Invoke(timecode.NewFrameTimecode(0, 25, ""), diagnostics.New(0, nil), nil)
	if len(calls) != 2 {
		t.Fatalf("expected both listeners on first tick, got %v", calls)
	}

	t1.Cancel()
	calls = nil
	reg.Invoke(timecode.NewFrameTimecode(1, 25, ""), diagnostics.New(0, nil), nil)
	if len(calls) != 1 || calls[0] != 2 {
		t.Fatalf("expected only listener 2 after cancelling listener 1, got %v", calls)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	reg := New()
	token := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) {})
	token.Cancel()
	token.Cancel()
	if reg.Len() != 0 {
		t.Fatalf("expected 0 listeners after cancel, got %d", reg.Len())
	}
}

func TestOnePanickingListenerDoesNotStopOthers(t *testing.T) {
	reg := New()
	var secondRan bool
	var panics []any

	t1 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { panic("boom") })
	defer t1.Cancel()
	t2 := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) { secondRan = true })
	defer t2.Cancel()

	reg.Invoke(timecode.NewFrameTimecode(0, 25, ""), diagnostics.New(0, nil), func(id int64, r any) {
		panics = append(panics, r)
	})

	if !secondRan {
		t.Fatal("a panicking listener must not prevent later listeners from running")
	}
	if len(panics) != 1 {
		t.Fatalf("expected exactly one captured panic, got %d", len(panics))
	}
}

func TestDroppedTokenIsCleanedUpByGC(t *testing.T) {
	reg := New()
	func() {
		token := reg.Add(func(tc timecode.FrameTimecode, g *diagnostics.Graph) {})
		_ = token
	}()

	runtime.GC()
	runtime.GC()

	deadline := 0
	for reg.Len() > 0 && deadline < 100 {
		runtime.GC()
		deadline++
	}
	if reg.Len() != 0 {
		t.Skip("cleanup queue did not drain within the test's GC budget")
	}
}
