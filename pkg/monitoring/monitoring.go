package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"

	monitoring "github.com/streamforge/channelcore/pkg/config/monitoring"
	"github.com/streamforge/channelcore/pkg/logger"
	"github.com/streamforge/channelcore/pkg/network/httpx"
	"github.com/streamforge/channelcore/pkg/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitoring exposes Prometheus metrics and pprof profiling for a
// channel host process. The channel loop never calls into this package
// directly; it only updates the metrics registered by diagnostics.Graph.
type Monitoring struct {
	service.RunnableService

	conf   monitoring.Config
	tag    string
	server *httpx.Server
}

// New creates a new monitoring service. tag labels log lines so that
// several monitoring endpoints can be told apart. reg is the gatherer
// scraped at /metrics; it must be the same registry diagnostics.Graph
// registers its per-channel gauges on, or they never show up here.
func New(conf monitoring.Config, tag string, log *logger.Logger, reg prometheus.Gatherer) *Monitoring {
	serv, _ := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) http.Handler {
			h := http.NewServeMux()

			if conf.ProfilingEnabled {
				prefix := conf.URLPrefix + "/debug/pprof"
				log.Info().Msgf("[%s] profiling is enabled at %s%s", tag, serv.Addr, prefix)
				h.HandleFunc(prefix+"/", pprof.Index)
				h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
				h.HandleFunc(prefix+"/profile", pprof.Profile)
				h.HandleFunc(prefix+"/symbol", pprof.Symbol)
				h.HandleFunc(prefix+"/trace", pprof.Trace)
				h.Handle(prefix+"/allocs", pprof.Handler("allocs"))
				h.Handle(prefix+"/block", pprof.Handler("block"))
				h.Handle(prefix+"/goroutine", pprof.Handler("goroutine"))
				h.Handle(prefix+"/heap", pprof.Handler("heap"))
				h.Handle(prefix+"/mutex", pprof.Handler("mutex"))
				h.Handle(prefix+"/threadcreate", pprof.Handler("threadcreate"))
			}

			if conf.MetricEnabled {
				metricPath := conf.URLPrefix + "/metrics"
				log.Info().Msgf("[%s] prometheus metrics are enabled at %s%s", tag, serv.Addr, metricPath)
				h.Handle(metricPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			}

			return h
		},
		httpx.WithLogger(log),
	)
	return &Monitoring{conf: conf, tag: tag, server: serv}
}

func (m *Monitoring) Run() { m.server.Run() }

func (m *Monitoring) Shutdown(ctx context.Context) error { return m.server.Shutdown(ctx) }

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
