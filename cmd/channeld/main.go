package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	coreChannel "github.com/streamforge/channelcore/pkg/core/channel"
	"github.com/streamforge/channelcore/pkg/config/channel"
	"github.com/streamforge/channelcore/pkg/core/format"
	"github.com/streamforge/channelcore/pkg/core/frame"
	"github.com/streamforge/channelcore/pkg/core/mixer"
	"github.com/streamforge/channelcore/pkg/core/output"
	"github.com/streamforge/channelcore/pkg/core/stage"
	"github.com/streamforge/channelcore/pkg/core/timecode"
	"github.com/streamforge/channelcore/pkg/logger"
	"github.com/streamforge/channelcore/pkg/monitoring"
	cos "github.com/streamforge/channelcore/pkg/os"
	"github.com/streamforge/channelcore/pkg/service"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
)

var Version = "?"

var (
	confPath = flag.String("conf", "", "path to the directory holding config.yaml")
	debug    = flag.Bool("debug", false, "enable debug logging")
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	var conf channel.Config
	if err := channel.Load(&conf, *confPath); err != nil {
		panic(fmt.Sprintf("channeld: failed to load configuration: %v", err))
	}

	log := logger.NewConsole(*debug, "channeld", false)
	log.Info().Msgf("channeld %s starting, %d channel(s)", Version, conf.Count)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	reg := prometheus.NewRegistry()

	channels := make([]*coreChannel.Channel, 0, conf.Count)
	for i := 0; i < conf.Count; i++ {
		c, err := newDemoChannel(i, conf, log, reg)
		if err != nil {
			log.Fatal().Err(err).Msgf("channeld: failed to build channel %d", i)
		}
		channels = append(channels, c)
	}

	var services service.Group
	services.Add(monitoring.New(conf.Monitoring, "channeld", log, reg))
	for _, c := range channels {
		services.Add(c)
	}
	services.Start()

	watcher, err := watchConfigReload(*confPath, channels, log)
	if err != nil {
		log.Warn().Err(err).Msg("channeld: config file watcher disabled")
	} else if watcher != nil {
		defer watcher.Close()
	}

	<-cos.ExpectTermination()
	log.Info().Msg("channeld: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("channeld: service shutdown errors")
	}
}

// newDemoChannel builds a Channel with the stock software stage, mixer
// and output, consuming to a log line rather than any real sink. A real
// deployment swaps in its own Producer/Consumer implementations;
// channeld only owns the pipeline's wiring, not any concrete producer
// or consumer implementation.
func newDemoChannel(index int, conf channel.Config, log *logger.Logger, reg prometheus.Registerer) (*coreChannel.Channel, error) {
	out := output.New(log)
	out.Add(&logConsumer{log: log, index: index})

	return coreChannel.New(
		index,
		conf.Format,
		stage.New(log),
		mixer.New(),
		out,
		nil,
		log,
		reg,
	)
}

// logConsumer is the demo sink channeld ships with: instead of writing
// anywhere real, it logs one debug line every round(fps) ticks.
type logConsumer struct {
	log   *logger.Logger
	index int
	ticks int64
}

func (l *logConsumer) Consume(tc timecode.FrameTimecode, mixed frame.Frame, fd format.Desc) error {
	l.ticks++
	if l.ticks%int64(fd.FPS.Float64()+0.5) == 0 {
		l.log.Debug().Msgf("channel %d: tick %s, %d audio samples", l.index, tc, len(mixed.Audio))
	}
	return nil
}

// watchConfigReload watches confPath for writes and pushes the
// resulting video format to every channel via SetVideoFormatDesc,
// debounced the same way ManuGH-xg2g's config.ConfigHolder debounces
// file-write bursts from editors that write in several syscalls. An
// empty confPath (environment-only configuration) disables the
// watcher; that is not an error.
func watchConfigReload(confPath string, channels []*coreChannel.Channel, log *logger.Logger) (*fsnotify.Watcher, error) {
	if confPath == "" {
		log.Info().Msg("channeld: config file watcher disabled (no -conf path given)")
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(confPath); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	go func() {
		const debounce = 500 * time.Millisecond
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					reloadFormat(confPath, channels, log)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("channeld: config watcher error")
			}
		}
	}()

	log.Info().Msgf("channeld: watching %s for live format reloads", confPath)
	return watcher, nil
}

func reloadFormat(confPath string, channels []*coreChannel.Channel, log *logger.Logger) {
	var conf channel.Config
	if err := channel.Load(&conf, confPath); err != nil {
		log.Error().Err(err).Msg("channeld: config reload failed, keeping previous format")
		return
	}
	for _, c := range channels {
		if format.Equal(c.VideoFormatDesc(), conf.Format) {
			continue
		}
		if err := c.SetVideoFormatDesc(conf.Format); err != nil {
			log.Error().Err(err).Msgf("channel %d: rejected reloaded format %q", c.Index(), conf.Format.Name)
			continue
		}
		log.Info().Msgf("channel %d: live-reconfigured to format %q", c.Index(), conf.Format.Name)
	}
}
