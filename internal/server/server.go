// Package server exposes sessions over HTTP. Handlers are keyed by user
// action and return JSON render models; exports are served as attachments.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/datalens/internal/export"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/metrics"
	"github.com/KaramelBytes/datalens/internal/session"
)

const defaultMaxUpload = 200 << 20

// Options wires a Server.
type Options struct {
	Store   *session.Store
	Adapter *insight.Adapter
	Ingest  ingest.Options
	// MaxUploadBytes caps a single upload; 0 means 200 MiB.
	MaxUploadBytes int64
	Logger         *slog.Logger
	Clock          clockwork.Clock
}

// Server holds the handler dependencies.
type Server struct {
	store     *session.Store
	adapter   *insight.Adapter
	writer    *export.Writer
	ingest    ingest.Options
	maxUpload int64
	log       *slog.Logger
	clock     clockwork.Clock
}

// New builds a Server from opt, filling in defaults.
func New(opt Options) *Server {
	s := &Server{
		store:     opt.Store,
		adapter:   opt.Adapter,
		ingest:    opt.Ingest,
		maxUpload: opt.MaxUploadBytes,
		log:       opt.Logger,
		clock:     opt.Clock,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.store == nil {
		s.store = session.NewStore(session.DefaultTTL, s.clock)
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if len(s.ingest.Encodings) == 0 {
		s.ingest.Encodings = ingest.DefaultOptions().Encodings
	}
	s.writer = &export.Writer{Clock: s.clock}
	return s
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/sessions")
	api.POST("", s.handleCreateSession)
	api.DELETE("/:id", s.handleDeleteSession)

	sess := api.Group("/:id")
	sess.POST("/upload", s.withSession(s.handleUpload))
	sess.GET("/overview", s.withSession(s.handleOverview))
	sess.PUT("/view", s.withSession(s.handleView))
	sess.POST("/insights", s.withSession(s.handleGenerateInsights))
	sess.GET("/insights", s.withSession(s.handleGetInsights))
	sess.POST("/query", s.withSession(s.handleQuery))
	sess.GET("/history", s.withSession(s.handleHistory))
	sess.GET("/charts", s.withSession(s.handleChartAvailability))
	sess.POST("/charts", s.withSession(s.handleBuildChart))
	sess.GET("/charts/auto", s.withSession(s.handleAutoCharts))
	sess.GET("/charts/dashboard", s.withSession(s.handleDashboard))
	sess.GET("/export/:format", s.withSession(s.handleExport))
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.store.Start()
	defer s.store.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", s.clock.Since(start),
		)
	}
}

// sessionHandler runs with the session locked.
type sessionHandler func(c *gin.Context, sess *session.Session)

// withSession resolves :id and serializes requests against the same session.
func (s *Server) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.store.Get(c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		sess.Lock()
		defer sess.Unlock()
		h(c, sess)
	}
}
