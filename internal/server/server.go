// Package server exposes analysis reports over HTTP. Every request
// recomputes the report; nothing is kept between requests except the
// prediction cache the pipeline may use.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stock-analyzer/internal/config"
	"stock-analyzer/internal/pipeline"
	"stock-analyzer/internal/report"
)

// Analyzer produces a report for one request.
type Analyzer interface {
	Run(ctx context.Context, req pipeline.Request) (*report.Report, error)
}

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// OptionsFromConfig reads server options from the application config.
func OptionsFromConfig(cfg config.ServerConfig, gatherer prometheus.Gatherer) Options {
	return Options{
		Addr:         cfg.Addr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Gatherer:     gatherer,
	}
}

// Server wraps an echo instance serving reports.
type Server struct {
	echo     *echo.Echo
	analyzer Analyzer
	opts     Options
	logger   zerolog.Logger
	started  time.Time
}

// New creates a server and registers its routes.
func New(analyzer Analyzer, opts Options, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	s := &Server{
		echo:     e,
		analyzer: analyzer,
		opts:     opts,
		logger:   logger.With().Str("component", "server").Logger(),
		started:  time.Now(),
	}

	e.Use(recoverMiddleware(s.logger))
	e.Use(requestLogger(s.logger))

	e.GET("/healthz", s.health)
	api := e.Group("/api/v1")
	api.GET("/report/:ticker", s.report)

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

// reportQuery is bound from the path and query string.
type reportQuery struct {
	Ticker         string `param:"ticker" validate:"required,max=32"`
	Format         string `query:"format" validate:"omitempty,oneof=json markdown html"`
	From           string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To             string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	SkipPrediction bool   `query:"skip_prediction"`
	SkipNarrative  bool   `query:"skip_narrative"`
	Refresh        bool   `query:"refresh"`
}

func (q reportQuery) request() pipeline.Request {
	req := pipeline.Request{
		Ticker:         q.Ticker,
		SkipPrediction: q.SkipPrediction,
		SkipNarrative:  q.SkipNarrative,
		Refresh:        q.Refresh,
	}
	// validated above
	req.From, _ = parseDay(q.From)
	req.To, _ = parseDay(q.To)
	return req
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func (s *Server) report(c echo.Context) error {
	var q reportQuery
	if err := c.Bind(&q); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if err := config.ValidateStruct(&q); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	r, err := s.analyzer.Run(c.Request().Context(), q.request())
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", q.Ticker).Msg("Report failed")
		return errorResponse(c, statusFor(err), err)
	}

	switch q.Format {
	case "markdown":
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.RenderMarkdown(r)))
	case "html":
		page, err := report.RenderHTML(r)
		if err != nil {
			return errorResponse(c, http.StatusInternalServerError, err)
		}
		return c.HTML(http.StatusOK, page)
	default:
		return c.JSON(http.StatusOK, r)
	}
}
