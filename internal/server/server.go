package server

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/five82/logdeck/internal/dispatch"
	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/source"
	"github.com/five82/logdeck/internal/state"
)

const (
	maxIngestBytes  = 32 << 20
	shutdownTimeout = 5 * time.Second
)

// Deps are the services the server exposes.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Store      *state.Store       // optional, reported by /api/stats
	Watchdog   *dispatch.Watchdog // optional, reported by /api/stats
	Metrics    http.Handler       // optional, served on /metrics
}

// Server is the network listener producer. It accepts events over HTTP and
// streams the dispatched event flow to WebSocket viewers, each of which is a
// dispatcher destination.
type Server struct {
	name    string
	addr    string
	deps    Deps
	engine  *gin.Engine
	gate    *source.Gate
	logger  *slog.Logger
	metrics metrics.Sink
	life    source.Lifecycle
	now     func() time.Time

	mu       sync.Mutex
	bound    string
	clients  map[string]*wsClient
	clientID uint64
}

var _ source.Producer = (*Server)(nil)

// New creates a server that will listen on addr once started.
func New(name, addr string, deps Deps, logger *slog.Logger, m metrics.Sink) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		name:    name,
		addr:    addr,
		deps:    deps,
		engine:  engine,
		gate:    source.NewGate(deps.Dispatcher, name),
		logger:  logger,
		metrics: metrics.OrNop(m),
		now:     time.Now,
		clients: make(map[string]*wsClient),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/api/stats", s.handleStats)
	s.engine.POST("/api/events", s.handleIngest)
	s.engine.GET("/ws", s.handleWebSocket)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
}

// Name identifies the producer.
func (s *Server) Name() string { return s.name }

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.bound = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err = s.life.Go(ctx, func(ctx context.Context) {
		errCh := make(chan error, 1)
		go func() {
			if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				errCh <- serveErr
			}
		}()
		s.logger.Info("listening", "producer", s.name, "addr", ln.Addr().String())

		select {
		case <-ctx.Done():
		case serveErr := <-errCh:
			s.metrics.Count(metrics.ProducerErrors, 1)
			s.logger.Error("server stopped", "producer", s.name, "error", serveErr)
		}
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		s.closeClients()
	})
	if err != nil {
		_ = ln.Close()
	}
	return err
}

// Stop shuts the listener down and disconnects viewers. No events are
// enqueued after it returns.
func (s *Server) Stop() {
	s.gate.Close()
	s.life.Stop()
}

// handleHealth always answers 200; a stall is reported, not failed.
func (s *Server) handleHealth(c *gin.Context) {
	st := s.deps.Dispatcher.Stats()
	status := "ok"
	if s.deps.Watchdog != nil && s.deps.Watchdog.Stats().Stalled {
		status = "stalled"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"queue_len": st.QueueLen,
		"queue_cap": st.QueueCap,
		"enqueued":  st.Enqueued,
		"dropped":   st.Dropped,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	body := gin.H{"dispatch": s.deps.Dispatcher.Stats()}
	if s.deps.Store != nil {
		body["store"] = s.deps.Store.Stats()
	}
	if s.deps.Watchdog != nil {
		body["liveness"] = s.deps.Watchdog.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// handleIngest accepts NDJSON, a JSON array, or a single JSON object,
// optionally gzip-encoded.
func (s *Server) handleIngest(c *gin.Context) {
	var reader io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBytes)
	if enc := c.GetHeader("Content-Encoding"); strings.Contains(strings.ToLower(enc), "gzip") {
		gr, err := gzip.NewReader(reader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad gzip"})
			return
		}
		defer gr.Close()
		reader = gr
	}

	events, err := logevent.DecodeStream(reader, s.now())
	if err != nil {
		s.metrics.Count(metrics.ProducerDecodeErrs, 1)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "accepted": 0})
		return
	}
	if !s.gate.Enqueue(events) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(events)})
}
