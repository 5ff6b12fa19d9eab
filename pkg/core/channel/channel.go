// Package channel implements the video channel pipeline: the tick
// loop that drives produce, mix, consume, timecode predict/commit,
// route fan-out and diagnostics publication once per frame period.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamforge/channelcore/pkg/core/diagnostics"
	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/mixer"
	"github.com/streamforge/channelcore/pkg/core/output"
	"github.com/streamforge/channelcore/pkg/core/route"
	"github.com/streamforge/channelcore/pkg/core/stage"
	"github.com/streamforge/channelcore/pkg/core/tclisten"
	"github.com/streamforge/channelcore/pkg/core/timecode"
	"github.com/streamforge/channelcore/pkg/logger"
)

// MonitorState is a per-tick snapshot published to the tick callback.
// The callback must not retain references into the map it is given;
// Channel hands out a fresh copy every tick.
type MonitorState map[string]any

// Channel owns one pipeline loop: format descriptor, cadence vector,
// channel timecode, stage, mixer, output, route registry, listener
// registry and diagnostics graph. It exclusively owns the loop
// goroutine; routes and listeners are independently lifetime-managed
// (see pkg/core/route, pkg/core/tclisten).
type Channel struct {
	index int
	log   *logger.Logger

	mu      sync.Mutex
	fd      format.Desc
	cadence []int

	tc        *timecode.ChannelTimecode
	graph     *diagnostics.Graph
	st        stage.Stage
	mx        mixer.Mixer
	out       output.Output
	routes    *route.Registry
	listeners *tclisten.Registry
	onTick    func(MonitorState)

	stateMu sync.Mutex
	state   MonitorState

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New validates fd and its collaborators, then returns an unstarted
// Channel. Call Run to start the loop. reg may be nil to skip
// Prometheus registration (tests, or a channel that publishes
// diagnostics some other way).
func New(
	index int,
	fd format.Desc,
	st stage.Stage,
	mx mixer.Mixer,
	out output.Output,
	onTick func(MonitorState),
	log *logger.Logger,
	reg prometheus.Registerer,
) (*Channel, error) {
	var errs *multierror.Error
	if err := fd.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if st == nil {
		errs = multierror.Append(errs, fmt.Errorf("channel %d: stage must not be nil", index))
	}
	if mx == nil {
		errs = multierror.Append(errs, fmt.Errorf("channel %d: mixer must not be nil", index))
	}
	if out == nil {
		errs = multierror.Append(errs, fmt.Errorf("channel %d: output must not be nil", index))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Channel{
		index:     index,
		log:       log,
		fd:        fd,
		cadence:   append([]int(nil), fd.AudioCadence...),
		tc:        timecode.NewChannel(fd, timecode.SourceSystem),
		graph:     diagnostics.New(index, reg),
		st:        st,
		mx:        mx,
		out:       out,
		routes:    route.New(),
		listeners: tclisten.New(),
		onTick:    onTick,
		state:     MonitorState{},
	}, nil
}

// Run anchors the timecode to wall clock and starts the loop goroutine.
// Safe to call more than once; only the first call has any effect,
// satisfying pkg/service.RunnableService.
func (c *Channel) Run() {
	c.startOnce.Do(func() {
		c.tc.Start()
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.done = make(chan struct{})
		if c.log != nil {
			c.log.Info().Msgf("%s: starting", c)
		}
		go c.loop(ctx)
	})
}

// Shutdown requests the loop to stop after its in-flight tick and
// waits for it to exit or for ctx to expire, satisfying
// pkg/service.RunnableService.
func (c *Channel) Shutdown(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		if c.log != nil {
			c.log.Info().Msgf("%s: stopped", c)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.tick()
	}
}

// tick runs one iteration of the pipeline: predict timecode, produce,
// commit timecode, invoke listeners, mix, consume, dispatch routes,
// publish state. The whole body is wrapped in a catch-all recover: any
// failure is logged and the loop moves on to the next tick, with no
// retry.
func (c *Channel) tick() {
	defer func() {
		if r := recover(); r != nil && c.log != nil {
			c.log.Warn().Msgf("%s: tick panicked: %v", c, r)
		}
	}()

	tickStart := time.Now()

	c.mu.Lock()
	fd := c.fd
	format.RotateInPlace(c.cadence)
	nbSamples := c.cadence[0]
	c.mu.Unlock()

	c.resetState()

	c.tc.Tick(false) // predict; the predicted value is not passed to producers, which receive only fd and nbSamples

	produceStart := time.Now()
	frames := c.st.Tick(fd, nbSamples)
	c.graph.Set(diagnostics.ProduceTime, scaledElapsed(produceStart, fd.FPS))
	c.setState("stage", c.st.State())

	tc := c.tc.Tick(true)

	c.listeners.Invoke(tc, c.graph, func(id int64, r any) {
		if c.log != nil {
			c.log.Warn().Msgf("%s: timecode listener %d panicked: %v", c, id, r)
		}
	})

	mixStart := time.Now()
	mixed := c.mx.Mix(frames, fd, nbSamples)
	c.graph.Set(diagnostics.MixTime, scaledElapsed(mixStart, fd.FPS))
	c.setState("mixer", c.mx.State())

	consumeStart := time.Now()
	c.out.Tick(tc, mixed, fd)
	c.graph.Set(diagnostics.ConsumeTime, scaledElapsed(consumeStart, fd.FPS))
	c.setState("output", c.out.State())

	c.routes.Dispatch(frames)

	c.setState("timecode", tc.String())
	c.setState("timecode/source", c.tc.SourceName())
	for k, v := range c.graph.Snapshot() {
		c.setState("diagnostics/"+k, v)
	}

	oscStart := time.Now()
	if c.onTick != nil {
		c.onTick(c.State())
	}
	c.graph.Set(diagnostics.OscTime, scaledElapsed(oscStart, fd.FPS))

	if budget := framePeriod(fd.FPS); budget > 0 {
		if elapsed := time.Since(tickStart); elapsed > budget {
			c.graph.Inc(diagnostics.SkippedSchedule)
			if c.log != nil {
				c.log.Warn().Msgf("%s: tick overran its frame period (%s > %s)", c, elapsed, budget)
			}
		}
	}
}

// framePeriod is the nominal wall-clock duration of one frame at fps.
func framePeriod(fps format.Rational) time.Duration {
	if fps.Num <= 0 || fps.Den <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) * float64(fps.Den) / float64(fps.Num))
}

// scaledElapsed reports elapsed as a fraction of two frame periods, so
// a value of 1.0 on the diagnostics graph corresponds to two frame
// periods and the graph saturates gracefully instead of clipping at
// one frame.
func scaledElapsed(start time.Time, fps format.Rational) float64 {
	return time.Since(start).Seconds() * fps.Float64() * 0.5
}

func (c *Channel) resetState() {
	c.stateMu.Lock()
	c.state = MonitorState{}
	c.stateMu.Unlock()
}

func (c *Channel) setState(key string, value any) {
	c.stateMu.Lock()
	c.state[key] = value
	c.stateMu.Unlock()
}

// State returns a copy of the most recently published monitor state.
func (c *Channel) State() MonitorState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	out := make(MonitorState, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}

// Stage returns the channel's producer set for command-layer
// manipulation (load/remove layers).
func (c *Channel) Stage() stage.Stage { return c.st }

// Mixer returns the channel's compositor.
func (c *Channel) Mixer() mixer.Mixer { return c.mx }

// Output returns the channel's consumer set.
func (c *Channel) Output() output.Output { return c.out }

// Route returns the (possibly newly created) route for layerID, or
// route.ChannelLayer for the whole-channel composite.
func (c *Channel) Route(layerID int) *route.Route { return c.routes.Route(layerID) }

// AddTimecodeListener registers listener to be invoked once per
// committed tick and returns a token that unregisters it.
func (c *Channel) AddTimecodeListener(listener tclisten.Listener) *tclisten.CancellationToken {
	return c.listeners.Add(listener)
}

// VideoFormatDesc returns the format the channel is currently running.
func (c *Channel) VideoFormatDesc() format.Desc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// SetVideoFormatDesc validates fd, then swaps it in: the cadence
// vector is replaced, the timecode is rebased so the next committed
// counter does not jump backward, and the stage is cleared of
// residual layers.
func (c *Channel) SetVideoFormatDesc(fd format.Desc) error {
	if err := fd.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.fd = fd
	c.cadence = append([]int(nil), fd.AudioCadence...)
	c.mu.Unlock()

	c.tc.ChangeFormat(fd)
	c.st.Clear()
	return nil
}

// Index returns the channel's integer identity, used across logs and
// monitor paths.
func (c *Channel) Index() int { return c.index }

// Timecode returns the channel's timecode handle.
func (c *Channel) Timecode() *timecode.ChannelTimecode { return c.tc }

// Diagnostics returns the channel's diagnostics graph.
func (c *Channel) Diagnostics() *diagnostics.Graph { return c.graph }

func (c *Channel) String() string {
	return fmt.Sprintf("channel[%d|%s]", c.index, c.VideoFormatDesc().Name)
}
