package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandle(t *testing.T) {

	assert := assert.New(t)

	m := New()

	m.Handle(domain.StreamStateEvent{Session: "a", State: domain.STREAM_STATE_OPEN})
	m.Handle(domain.ReadingUpdatedEvent{Reading: domain.Reading{
		VoltageVolts: 119, CurrentAmps: 3.75, PowerWatts: 450, UpdatedAt: time.Unix(1700000000, 0)}})
	m.Handle(domain.StreamStateEvent{Session: "a", State: domain.STREAM_STATE_CLOSING})
	m.Handle(domain.PollScheduledEvent{Delay: 30 * time.Second})
	m.Handle(domain.StreamErrorEvent{Error: errors.New("boom")})
	m.Handle("irrelevant")

	assert.Equal(450.0, testutil.ToFloat64(m.powerWatts))
	assert.Equal(119.0, testutil.ToFloat64(m.voltageVolts))
	assert.Equal(3.75, testutil.ToFloat64(m.currentAmps))
	assert.Equal(1700000000.0, testutil.ToFloat64(m.lastUpdate))
	assert.Equal(1.0, testutil.ToFloat64(m.readings))
	assert.Equal(1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(1.0, testutil.ToFloat64(m.polls))
	assert.Equal(1.0, testutil.ToFloat64(m.streamErrors))
	assert.Equal(1.0, testutil.ToFloat64(m.streamState.WithLabelValues(domain.STREAM_STATE_CLOSING)))
	assert.Equal(0.0, testutil.ToFloat64(m.streamState.WithLabelValues(domain.STREAM_STATE_OPEN)))
}

func TestHandler(t *testing.T) {

	m := New()
	m.Handle(domain.ReadingUpdatedEvent{Reading: domain.Reading{PowerWatts: 450}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sense2homekit_power_watts 450")
}
