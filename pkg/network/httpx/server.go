package httpx

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/streamforge/channelcore/pkg/logger"
)

// Server is a thin wrapper around http.Server that fits the
// service.RunnableService contract (Run / Shutdown) used to expose
// a channel's diagnostics and profiling endpoints.
type Server struct {
	http.Server

	log *logger.Logger
}

type Option func(*options)

type options struct {
	log *logger.Logger
}

func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

// NewServer builds an HTTP server bound to addr. handler is called with
// the constructed server so the caller can build routes that need access
// to e.g. the final listen address.
func NewServer(addr string, handler func(*Server) http.Handler, opts ...Option) (*Server, error) {
	o := &options{log: logger.Default()}
	for _, apply := range opts {
		apply(o)
	}

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			IdleTimeout:  120 * time.Second,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		log: o.log,
	}
	s.Handler = handler(s)
	return s, nil
}

// Run starts the server in the background. Listener bind failures are
// logged rather than returned because Run must satisfy the
// service.RunnableService contract.
func (s *Server) Run() {
	go func() {
		s.log.Info().Msgf("starting http server on %s", s.Addr)
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			s.log.Error().Err(err).Msg("httpx listen failed")
			return
		}
		if err := s.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("httpx serve failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }
