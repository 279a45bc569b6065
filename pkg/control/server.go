// Package control exposes the daemon's local HTTP surface: triggering
// dictation runs, browsing run history, and reporting status and
// Prometheus metrics. It binds to loopback by default and speaks plain
// JSON, so anything from a hotkey script to curl can drive it.
package control

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/symphovais/voicepipe/pkg/common/validation"
	"github.com/symphovais/voicepipe/pkg/guard"
	"github.com/symphovais/voicepipe/pkg/history"
	"github.com/symphovais/voicepipe/pkg/metrics"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/runner"
)

// DefaultMaxBodyBytes bounds an uploaded audio clip. Five minutes of
// 48kHz stereo 16-bit PCM is under 60MB.
const DefaultMaxBodyBytes = 64 << 20

// Config holds configuration options for a Server.
type Config struct {
	// Addr is the listen address.
	// Default: "127.0.0.1:8090"
	Addr string

	// Pipeline executes triggered runs. Required.
	Pipeline pipeline.Pipeline

	// Runner queues and executes submissions. Required.
	Runner *runner.Runner

	// Guard admits triggers. Optional; nil admits everything.
	Guard *guard.Guard

	// Store receives a record per finished run and serves the history
	// endpoints. Optional; nil disables persistence and reports have
	// empty history.
	Store history.Store

	// Metrics counts trigger requests and denials. Optional.
	Metrics *metrics.Registry

	// Gatherer backs the /metrics endpoint. Defaults to the process-wide
	// Prometheus gatherer.
	Gatherer prometheus.Gatherer

	// AudioKey is the context key triggered audio is seeded under.
	// Default: "audio"
	AudioKey string

	// TextKey is the context key the finished transcript is read from.
	// Default: "text"
	TextKey string

	// MaxBodyBytes bounds the uploaded clip size.
	// Default: DefaultMaxBodyBytes
	MaxBodyBytes int64

	// ReadTimeout bounds reading a request.
	// Default: 30s
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response, including the handler. It
	// must outlast a waited-on run.
	// Default: 5m
	WriteTimeout time.Duration

	// OnError receives background failures such as history saves.
	// Optional.
	OnError func(error)
}

// Server is the daemon's HTTP control surface.
type Server struct {
	config  Config
	httpSrv *http.Server
	started time.Time
}

// New creates a control server. It does not start listening.
func New(config Config) (*Server, error) {
	if err := validation.ValidateNotNil("control", "Pipeline", config.Pipeline); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("control", "Runner", config.Runner); err != nil {
		return nil, err
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8090"
	}
	if config.AudioKey == "" {
		config.AudioKey = "audio"
	}
	if config.TextKey == "" {
		config.TextKey = "text"
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Minute
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:  config,
		started: time.Now(),
	}
	s.httpSrv = &http.Server{
		Addr:         config.Addr,
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  time.Minute,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", s.handleTrigger)
	mux.HandleFunc("GET /v1/runs", s.handleRecent)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGet)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Handler returns the route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) countRequest(route string) {
	if s.config.Metrics != nil {
		s.config.Metrics.TriggerRequests.WithLabelValues(route).Inc()
	}
}

func (s *Server) countDenied(reason string) {
	if s.config.Metrics != nil {
		s.config.Metrics.TriggerDenied.WithLabelValues(reason).Inc()
	}
}

func (s *Server) reportError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
