package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/sense2homekit/internal/cache"
	"github.com/berfenger/sense2homekit/internal/core/domain"
	"github.com/berfenger/sense2homekit/internal/metrics"
	"github.com/berfenger/sense2homekit/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
)

func fakeMaster(healthy bool, reading domain.Reading) *actor.Props {
	return actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.GetReadingRequest:
			ctx.Respond(domain.GetReadingResponse{
				Reading: reading,
				State:   domain.STREAM_STATE_WAITING_REOPEN,
				Session: "abc",
			})
		}
	})
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	defer as.Shutdown()

	reading := domain.Reading{VoltageVolts: 119, CurrentAmps: 3.75, PowerWatts: 450, UpdatedAt: time.Now()}
	pid := as.Root.Spawn(fakeMaster(true, reading))

	m := metrics.New()
	m.Handle(domain.ReadingUpdatedEvent{Reading: reading})

	s := &Server{rootContext: as.Root, masterActor: pid, readings: cache.New(), metricsHandler: m.Handler()}
	handler := s.RegisterRoutes()

	rec := get(handler, "/healthcheck")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("health_check: OK", rec.Body.String())

	rec = get(handler, "/api/reading")
	assert.Equal(http.StatusOK, rec.Code)
	var body map[string]any
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(450.0, body["watts"])
	assert.Equal(119.0, body["voltage"])
	assert.Equal(3.75, body["current"])
	assert.Equal(domain.STREAM_STATE_WAITING_REOPEN, body["state"])

	rec = get(handler, "/metrics")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "sense2homekit_power_watts 450")
}

func TestHealthCheckUnhealthy(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	pid := as.Root.Spawn(fakeMaster(false, domain.Reading{}))
	s := &Server{rootContext: as.Root, masterActor: pid}

	rec := get(s.RegisterRoutes(), "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "health_check: FAIL", rec.Body.String())
}

func TestNewServer(t *testing.T) {

	cfg := util.LoadTestConfig()
	server := NewServer(cfg, nil, nil, cache.New(), nil)
	assert.Equal(t, ":8080", server.Addr)
}
