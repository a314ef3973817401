package server

import (
	"net/http"
	"time"

	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const REQUEST_TIMEOUT = 10 * time.Second

type readingResponse struct {
	domain.Reading
	State   string `json:"state,omitempty"`
	Session string `json:"session,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/reading", s.ReadingHandler)
	if s.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, REQUEST_TIMEOUT).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ReadingHandler answers with the last accepted reading. When the actor tree
// does not respond the cache is served without stream state.
func (s *Server) ReadingHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetReadingRequest{}, REQUEST_TIMEOUT).Result()
	if err == nil {
		if response, ok := res.(domain.GetReadingResponse); ok && !response.HasResponseError() {
			return c.JSON(http.StatusOK, readingResponse{
				Reading: response.Reading,
				State:   response.State,
				Session: response.Session,
			})
		}
	}
	if s.readings == nil {
		return c.String(http.StatusServiceUnavailable, "reading: unavailable")
	}
	return c.JSON(http.StatusOK, readingResponse{Reading: s.readings.Get()})
}
