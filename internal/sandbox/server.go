package sandbox

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yiancode/zsxq-sdk/internal/telemetry"
)

// Server is a local stand-in for the zsxq API. It verifies the signed
// headers of every call and answers from a Script.
type Server struct {
	cfg      *Config
	app      *fiber.App
	script   *Script
	journal  *Journal
	verifier *SignatureVerifier
}

type options struct {
	logger   logrus.FieldLogger
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
}

// Option configures a Server
type Option func(*options)

// WithLogger sets the request logger. Defaults to the telemetry logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records server metrics on m and serves gatherer on the
// metrics path.
func WithMetrics(m *telemetry.Metrics, gatherer prometheus.Gatherer) Option {
	return func(o *options) {
		o.metrics = m
		o.gatherer = gatherer
	}
}

// New builds a server from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &options{logger: telemetry.L()}
	for _, opt := range opts {
		opt(o)
	}

	app := fiber.New(fiber.Config{
		AppName:               "zsxq sandbox",
		Immutable:             true,
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		DisableStartupMessage: true,
	})

	script := NewScript()
	journal := NewJournal(0)
	verifier := NewSignatureVerifier(cfg, journal, o.metrics)
	handler := NewHandler(script, journal, o.metrics, o.logger)

	SetupMiddleware(app, o.logger, o.metrics)
	SetupRoutes(app, handler, verifier, cfg, o.gatherer)

	return &Server{
		cfg:      cfg,
		app:      app,
		script:   script,
		journal:  journal,
		verifier: verifier,
	}
}

// App returns the underlying Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Script returns the script answering signed calls
func (s *Server) Script() *Script {
	return s.script
}

// Journal returns the received request journal
func (s *Server) Journal() *Journal {
	return s.journal
}

// Listen serves on the configured address until Shutdown
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr())
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
