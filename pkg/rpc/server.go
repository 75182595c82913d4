package rpc

import (
	"context"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AccumulateNetwork/jsonrpc2/v15"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ServerConfig holds configuration for the RPC server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8899" or "127.0.0.1:8899")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum size of a request body in bytes.
	MaxRequestSize int64

	// AllowedOrigins for CORS (empty means allow all).
	AllowedOrigins []string

	// Rate limits apply per client IP.
	EnableRateLimit bool
	RateLimitRPS    float64
	RateLimitBurst  int
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        ":8899",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestSize: 1 << 20,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}

// Server is a JSON-RPC 2.0 server.
type Server struct {
	log      *logrus.Entry
	clock    clockwork.Clock
	config   *ServerConfig
	handlers *Handlers

	// errorLog receives the protocol errors reported by the JSON-RPC handler.
	errorLog *stdlog.Logger
	logPipe  io.Closer

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	running  bool
}

// NewServer creates a new RPC server. A nil config uses the defaults.
func NewServer(log *logrus.Entry, config *ServerConfig, handlers *Handlers, clock clockwork.Clock) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log = log.WithField("type", "rpc/server")
	pipe := log.WriterLevel(logrus.WarnLevel)
	return &Server{
		log:      log,
		clock:    clock,
		config:   config,
		handlers: handlers,
		errorLog: stdlog.New(pipe, "", 0),
		logPipe:  pipe,
	}
}

// Handler returns the JSON-RPC endpoint behind the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log, s.clock),
		CORSMiddleware(s.config.AllowedOrigins),
		PostOnlyMiddleware(),
		MaxBytesMiddleware(s.config.MaxRequestSize),
	}
	if s.config.EnableRateLimit {
		middlewares = append(middlewares, RateLimitMiddleware(s.clock, s.config.RateLimitRPS, s.config.RateLimitBurst))
	}
	middlewares = append(middlewares, ContentTypeMiddleware())
	return Chain(jsonrpc2.HTTPRequestHandler(s.handlers.Methods(), s.errorLog), middlewares...)
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("rpc server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.config.Address)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("rpc server stopped")
		}
	}()
	s.log.WithField("addr", listener.Addr().String()).Info("serving json-rpc")
	return nil
}

// Stop gracefully stops the RPC server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.server
	s.running = false
	s.mu.Unlock()

	err := server.Shutdown(ctx)
	s.logPipe.Close()
	return err
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
