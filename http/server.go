package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/freekieb7/poolhttp/filesystem"
	"github.com/freekieb7/poolhttp/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/poolhttp/http"

var (
	ErrServerClosed          = errors.New("http: server closed")
	ErrInvalidWorkers        = errors.New("http: workers must be at least 1")
	ErrInvalidReadBufferSize = errors.New("http: read buffer size must be at least 1")
	ErrInvalidDuration       = errors.New("http: durations must not be negative")
	ErrMissingAssetRoot      = errors.New("http: asset root is required")
	ErrReusePortNotSupported = errors.New("http: SO_REUSEPORT is not supported on this platform")
)

// Config is everything the server needs, fixed at construction.
type Config struct {
	Name    string
	Version string

	Addr      string
	AssetRoot string

	Workers        int
	ReadBufferSize int
	SleepDelay     time.Duration

	// ReadTimeout bounds the single request read. Zero waits forever.
	ReadTimeout time.Duration
	ReusePort   bool
}

func DefaultConfig() Config {
	return Config{
		Name:           DefaultName,
		Version:        DefaultVersion,
		Addr:           DefaultAddr,
		AssetRoot:      "assets",
		Workers:        DefaultWorkers,
		ReadBufferSize: DefaultReadBufferSize,
		SleepDelay:     DefaultSleepDelay,
	}
}

func (config Config) Validate() error {
	var errs error
	if config.Workers < 1 {
		errs = errors.Join(errs, fmt.Errorf("%w, got %d", ErrInvalidWorkers, config.Workers))
	}
	if config.ReadBufferSize < 1 {
		errs = errors.Join(errs, fmt.Errorf("%w, got %d", ErrInvalidReadBufferSize, config.ReadBufferSize))
	}
	if config.SleepDelay < 0 || config.ReadTimeout < 0 {
		errs = errors.Join(errs, ErrInvalidDuration)
	}
	return errs
}

// Options carries collaborators. Zero values fall back to slog.Default, the
// global OpenTelemetry providers and a local filesystem at Config.AssetRoot.
type Options struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Filesystem     filesystem.Filesystem
}

type Server struct {
	Name   string
	Config Config
	Router Router
	Logger *slog.Logger

	assets filesystem.Filesystem
	pool   *worker.Pool
	tracer trace.Tracer

	handler        Handler
	handlerOnce    sync.Once
	requestCtxPool sync.Pool

	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	addr       net.Addr
	inShutdown atomic.Bool

	connections  metric.Int64Counter
	acceptErrors metric.Int64Counter
	responses    metric.Int64Counter
}

// NewServer validates config, starts the worker pool and registers the
// routes. Nothing listens until Serve or ListenAndServe is called.
func NewServer(config Config, options Options) (*Server, error) {
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	assets := options.Filesystem
	if assets == nil {
		if config.AssetRoot == "" {
			return nil, ErrMissingAssetRoot
		}
		assets = filesystem.NewLocalFileSystem(config.AssetRoot)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracerProvider := options.TracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	meterProvider := options.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	meter := meterProvider.Meter(instrumentationName)

	s := &Server{
		Name:      config.Name,
		Config:    config,
		Logger:    logger,
		assets:    assets,
		tracer:    tracerProvider.Tracer(instrumentationName),
		listeners: make(map[net.Listener]struct{}),
	}
	s.requestCtxPool.New = func() any {
		return newRequestCtx(config.ReadBufferSize)
	}
	s.initInstruments(meter)
	s.registerRoutes()

	s.pool = worker.NewPool(config.Workers, logger, meter)

	return s, nil
}

func (s *Server) initInstruments(meter metric.Meter) {
	var err, errs error

	s.connections, err = meter.Int64Counter("http.server.connections",
		metric.WithDescription("Accepted connections"),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	s.acceptErrors, err = meter.Int64Counter("http.server.accept.errors",
		metric.WithDescription("Failed accept calls"),
		metric.WithUnit("{error}"))
	errs = errors.Join(errs, err)

	s.responses, err = meter.Int64Counter("http.server.responses",
		metric.WithDescription("Responses written, by status code"),
		metric.WithUnit("{response}"))
	errs = errors.Join(errs, err)

	if errs != nil {
		s.Logger.Error("creating server instruments failed", "error", errs)
	}
}

func (s *Server) registerRoutes() {
	s.Router = NewRouter()
	s.Router.NotFound = NotFoundHandler(s.assets)
	s.Router.Use(
		TraceMiddleware(s.tracer),
		LogMiddleware(s.Logger),
		RecoverMiddleware(s.Logger),
	)

	index := IndexHandler(s.assets, s.ServerHeader(), s.Router.NotFound)

	s.Router.GET("/sleep", SleepHandler(s.Config.SleepDelay))
	s.Router.GET("/", index)
	s.Router.GET("/index", index)
}

// ServerHeader is the value of the Server response header.
func (s *Server) ServerHeader() string {
	return s.Name + "/" + s.Config.Version
}

// Addr reports the address of the most recently started listener, or nil
// before the server listens.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Stats() worker.Stats {
	return s.pool.Stats()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	control, err := listenControl(s.Config.ReusePort)
	if err != nil {
		return err
	}

	lc := net.ListenConfig{Control: control}
	listener, err := lc.Listen(ctx, "tcp", s.Config.Addr)
	if err != nil {
		return fmt.Errorf("http: listen on %s: %w", s.Config.Addr, err)
	}

	s.Logger.Info("listening",
		"addr", listener.Addr().String(),
		"workers", s.pool.Size(),
		"assets", s.assets.Root())

	return s.Serve(ctx, listener)
}

// Serve accepts connections until the server shuts down and submits one job
// per connection to the worker pool. Accept errors are logged and retried
// with exponential backoff. It returns ErrServerClosed after Shutdown, the
// accept error when the listener is closed by someone else, or ctx.Err()
// when ctx ends while backing off.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.trackListener(listener) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(listener)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			delay := retry.NextBackOff()
			s.acceptErrors.Add(ctx, 1)
			s.Logger.Error("accepting connection failed", "error", err, "retry_in", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			continue
		}
		retry.Reset()

		s.connections.Add(ctx, 1)
		s.Logger.Info("accepted connection", "peer", conn.RemoteAddr().String())

		if err := s.submit(conn); err != nil {
			s.Logger.Warn("dropping connection", "peer", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			return ErrServerClosed
		}
	}
}

func (s *Server) trackListener(listener net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		return false
	}
	s.listeners[listener] = struct{}{}
	s.addr = listener.Addr()
	return true
}

func (s *Server) untrackListener(listener net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, listener)
}

// Shutdown closes every listener, then waits for the worker pool to finish
// the connections it already accepted. When ctx ends first, in-flight
// handlers see a cancelled context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	var errs error
	for listener := range s.listeners {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = errors.Join(errs, err)
		}
	}
	s.mu.Unlock()

	if err := s.pool.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	return errs
}
