package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the operation groups exposed over HTTP.
type Services struct {
	Policies  PolicyService
	Tags      TagService
	Chats     ChatService
	Summaries SummaryService
	Users     UserService
	// Ready reports whether backing stores are reachable. Nil skips /readyz.
	Ready func(ctx context.Context) error
}

// New builds the HTTP API. metrics serves /metrics; nil falls back to the
// default Prometheus registry.
func New(svc Services, metrics http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if svc.Ready != nil {
		e.GET("/readyz", func(c echo.Context) error {
			if err := svc.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
			return c.String(http.StatusOK, "ready")
		})
	}
	registerDocs(e)
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	e.GET("/metrics", echo.WrapHandler(metrics))

	api := e.Group("/api")
	(&PolicyHandler{Policies: svc.Policies}).Register(api.Group("/policies"))
	(&TagHandler{Tags: svc.Tags}).Register(api.Group("/tags"))
	(&ChatHandler{Chats: svc.Chats}).Register(api.Group("/chats"))
	(&SummaryHandler{Summaries: svc.Summaries}).Register(api.Group("/summaries"))
	(&UserHandler{Users: svc.Users}).Register(api.Group("/users"))
	return e
}

// Run serves e on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

// httpError maps service error kinds onto HTTP status codes.
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, web_fetch.ErrHostNotPermitted):
		code = http.StatusForbidden
	case errs.Kind(err) == errs.ErrValidation:
		code = http.StatusBadRequest
	case errs.Kind(err) == errs.ErrAcquisition:
		code = http.StatusBadGateway
	case errs.Kind(err) == errs.ErrExtractionIncomplete:
		code = http.StatusUnprocessableEntity
	case errs.Kind(err) == errs.ErrNotFound:
		code = http.StatusNotFound
	case errs.Kind(err) == errs.ErrConflict:
		code = http.StatusConflict
	}
	return echo.NewHTTPError(code, err.Error())
}

func bindError(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
}
