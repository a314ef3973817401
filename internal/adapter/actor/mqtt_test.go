package actor

import (
	"testing"
	"time"

	"github.com/berfenger/sense2homekit/internal/core/domain"
	"github.com/berfenger/sense2homekit/internal/core/events"
	"github.com/berfenger/sense2homekit/internal/util"
	"github.com/berfenger/sense2homekit/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	mqttActor := NewTestMQTTActor(&cfg, &es, logger)
	props := actor.PropsFromProducer(func() actor.Actor { return mqttActor })
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	reading := domain.Reading{
		VoltageVolts: 119,
		CurrentAmps:  3.75,
		PowerWatts:   450,
		UpdatedAt:    time.Now(),
	}
	for _, ev := range events.ReadingToUpdateEvents(reading) {
		es.Publish(ev)
	}
	for _, ev := range events.StreamStateToUpdateEvents("session", domain.STREAM_STATE_CLOSING) {
		es.Publish(ev)
	}

	assert.Eventually(t, func() bool {
		return len(mqttActor.Published()) == 5
	}, 2*time.Second, 20*time.Millisecond)

	published := mqttActor.Published()
	assert.Equal(t, "450", published["sense2homekit/sensor/monitor_power/state"])
	assert.Equal(t, "119.0", published["sense2homekit/sensor/monitor_voltage/state"])
	assert.Equal(t, "3.75", published["sense2homekit/sensor/monitor_current/state"])
	assert.Equal(t, domain.STREAM_STATE_CLOSING, published["sense2homekit/sensor/stream_state/state"])
	assert.Contains(t, published["sense2homekit/reading"], `"watts":450`)

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}
