package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

// ReadingSource is the fallback for /api/reading when the master does not answer.
type ReadingSource interface {
	Get() domain.Reading
}

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	readings       ReadingSource
	metricsHandler http.Handler
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	readings ReadingSource, metricsHandler http.Handler) *http.Server {
	NewServer := &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		masterActor:    masterActor,
		httpLog:        cfg.HttpLog,
		readings:       readings,
		metricsHandler: metricsHandler,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
