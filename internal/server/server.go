// Package server exposes the transformation service over HTTP: an echo
// engine with the middleware stack, the versioned route tree, and the
// uniform error envelope.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/metasphere-xyz/texttransform/internal/apierr"
	"github.com/metasphere-xyz/texttransform/internal/config"
	"github.com/metasphere-xyz/texttransform/internal/metrics"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/transform"
	"github.com/metasphere-xyz/texttransform/internal/version"
)

// Server wires the transformation service into an echo engine.
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	svc     *transform.Service
	metrics *metrics.Metrics
}

// New builds the engine with its full middleware stack and routes.
func New(cfg *config.Config, svc *transform.Service, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{echo: e, cfg: cfg, svc: svc, metrics: m}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(requestLogger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(cfg.Server.RateLimitPerMinute) / 60.0),
			Burst:     cfg.Server.RateLimitPerMinute,
			ExpiresIn: 3 * time.Minute,
		}),
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/", s.handleWelcome)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/text/"+version.APIVersion, versionHeaders, s.keyAuth(), enforceJSON)
	for _, op := range []plan.Operation{plan.OpCompress, plan.OpExpand, plan.OpRephrase} {
		h := s.handleTransform(op)
		// Both spellings work so clients need not chase redirects.
		g.POST("/"+string(op), h)
		g.POST("/"+string(op)+"/", h)
		g.GET("/"+string(op)+"/examples", s.handleExamples(op))
	}
}

// versionHeaders stamps the API version set on every versioned route.
func versionHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		for k, v := range version.Headers() {
			h.Set(k, v)
		}
		return next(c)
	}
}

// keyAuth guards the versioned tree with the static bearer allow-list.
// With no keys configured the guard is skipped, which is the local
// development mode.
func (s *Server) keyAuth() echo.MiddlewareFunc {
	keys := s.cfg.APIKeyValues()
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(echo.Context) bool { return len(keys) == 0 },
		Validator: func(key string, _ echo.Context) (bool, error) {
			for _, k := range keys {
				if key == k {
					return true, nil
				}
			}
			return false, nil
		},
		ErrorHandler: func(_ error, _ echo.Context) error {
			return apierr.Unauthorized("missing or invalid API key")
		},
	})
}

// enforceJSON rejects POST bodies that do not declare JSON.
func enforceJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodPost {
			ct := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
				return apierr.UnsupportedMedia("Content-Type must be application/json")
			}
		}
		return next(c)
	}
}

// requestLogger writes one line per request with the final status.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Commit the error response so the logged status is real;
			// the error handler ignores committed responses on the
			// second pass.
			c.Error(err)
		}
		log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().RequestURI).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("http request")
		return err
	}
}

// errorHandler renders every failure as the uniform envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *apierr.Error
	if !errors.As(err, &ae) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			ae = apierr.New(he.Code, codeForStatus(he.Code), fmt.Sprintf("%v", he.Message))
		} else {
			ae = apierr.Internal("an unexpected error occurred")
		}
	}

	if c.Request().Method == http.MethodHead {
		if nerr := c.NoContent(ae.Status); nerr != nil {
			log.Error().Err(nerr).Msg("write error response")
		}
		return
	}
	if jerr := c.JSON(ae.Status, apierr.Envelope{Err: ae}); jerr != nil {
		log.Error().Err(jerr).Msg("write error response")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_params"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal_server_error"
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("listen", s.cfg.Server.Listen).Msg("starting http server")
	return s.echo.Start(s.cfg.Server.Listen)
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.echo.Shutdown(ctx)
}
