package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/sense2homekit/internal/cache"
	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/domain"
	"github.com/berfenger/sense2homekit/internal/core/port"
	"github.com/berfenger/sense2homekit/internal/util"
	"github.com/berfenger/sense2homekit/internal/util/actorutil"
	"github.com/berfenger/sense2homekit/pkg/sense"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor = 3 * time.Second
	tick    = 20 * time.Millisecond
)

type recordedEvents struct {
	mu     sync.Mutex
	events []any
}

func (r *recordedEvents) add(ev any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) pollDelays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var delays []time.Duration
	for _, ev := range r.events {
		if e, ok := ev.(domain.PollScheduledEvent); ok {
			delays = append(delays, e.Delay)
		}
	}
	return delays
}

func (r *recordedEvents) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []string
	for _, ev := range r.events {
		if e, ok := ev.(domain.StreamStateEvent); ok {
			states = append(states, e.State)
		}
	}
	return states
}

type powerMeterFixture struct {
	system   *actor.ActorSystem
	pid      *actor.PID
	cache    *cache.ReadingCache
	recorded *recordedEvents
}

func (f *powerMeterFixture) stop() {
	f.system.Root.Stop(f.pid)
	f.system.Shutdown()
}

func (f *powerMeterFixture) reading() (*domain.GetReadingResponse, error) {
	res, err := f.system.Root.RequestFuture(f.pid, domain.GetReadingRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.GetReadingResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &resp, nil
}

func (f *powerMeterFixture) inState(name string) func() bool {
	return func() bool {
		resp, err := f.reading()
		return err == nil && resp.State == name
	}
}

func startPowerMeter(t *testing.T, cfg config.Config, provider EnergyStreamProvider, pollInterval time.Duration) *powerMeterFixture {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	es := &eventstream.EventStream{}
	recorded := &recordedEvents{}
	es.Subscribe(recorded.add)

	c := cache.New()
	props := actor.PropsFromProducer(func() actor.Actor {
		act := NewPowerMeterActor(&cfg, provider, c, es, logger)
		if pollInterval > 0 {
			act.pollInterval = pollInterval
		}
		return act
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_POWERMETER)
	require.NoError(t, err)

	return &powerMeterFixture{
		system:   as,
		pid:      pid,
		cache:    c,
		recorded: recorded,
	}
}

func clientProvider(client *sense.TestClient) EnergyStreamProvider {
	return func(_ context.Context) (port.EnergyStreamClient, error) {
		return client, nil
	}
}

func realtimeUpdate(w, c float64, voltage ...float64) sense.DataEvent {
	return sense.DataEvent{
		Type: sense.MESSAGE_TYPE_REALTIME_UPDATE,
		Payload: &sense.RealtimePayload{
			Voltage: voltage,
			W:       w,
			C:       c,
		},
	}
}

func TestPowerMeterAcceptsReadingAndCloses(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick, "stream should open after setup")

	client.Emit(realtimeUpdate(450, 3.75, 120, 118))

	assert.Eventually(t, func() bool {
		return f.cache.Watts() == 450
	}, waitFor, tick)

	r := f.cache.Get()
	assert.Equal(t, 119.0, r.VoltageVolts)
	assert.Equal(t, 3.75, r.CurrentAmps)
	assert.False(t, r.UpdatedAt.IsZero())

	assert.Eventually(t, f.inState(domain.STREAM_STATE_WAITING_REOPEN), waitFor, tick)

	_, opens, closes := client.Counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, client.IsOpen())

	// configured 30 seconds
	assert.Equal(t, []time.Duration{30 * time.Second}, f.recorded.pollDelays())
	assert.Contains(t, f.recorded.states(), domain.STREAM_STATE_CLOSING)
}

func TestPowerMeterIgnoresIrrelevantEvents(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)

	client.Emit(sense.DataEvent{Type: sense.MESSAGE_TYPE_HELLO})
	client.Emit(sense.DataEvent{Type: sense.MESSAGE_TYPE_DATA_CHANGE, Payload: &sense.RealtimePayload{W: 999}})
	client.Emit(sense.DataEvent{Type: sense.MESSAGE_TYPE_REALTIME_UPDATE})
	client.Emit(sense.ErrorEvent{Err: errors.New("socket hiccup")})

	time.Sleep(200 * time.Millisecond)

	resp, err := f.reading()
	require.NoError(t, err)
	assert.Equal(t, domain.STREAM_STATE_OPEN, resp.State)
	assert.True(t, resp.Reading.IsZero())
	assert.Equal(t, 0.0, f.cache.Watts())

	_, _, closes := client.Counts()
	assert.Equal(t, 0, closes)
	assert.True(t, client.IsOpen())
}

func TestPowerMeterClosesExactlyOnce(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)

	client.Emit(realtimeUpdate(450, 3.75, 120, 118))
	client.Emit(realtimeUpdate(900, 7.5, 121))
	client.Emit(sense.CloseEvent{WasClean: true})

	assert.Eventually(t, f.inState(domain.STREAM_STATE_WAITING_REOPEN), waitFor, tick)

	time.Sleep(100 * time.Millisecond)

	_, _, closes := client.Counts()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 450.0, f.cache.Watts(), "data after the accepted reading is ignored")
	assert.Len(t, f.recorded.pollDelays(), 1, "a single reopen is scheduled")
}

func TestPowerMeterEmptyVoltageList(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)

	client.Emit(realtimeUpdate(12, 0.1))

	assert.Eventually(t, func() bool {
		return f.cache.Watts() == 12
	}, waitFor, tick)
	assert.Equal(t, 0.0, f.cache.Get().VoltageVolts)
}

func TestPowerMeterReopensAfterInterval(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 200*time.Millisecond)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)
	client.Emit(realtimeUpdate(450, 3.75, 120, 118))

	assert.Eventually(t, func() bool {
		auths, opens, _ := client.Counts()
		return auths == 1 && opens == 2
	}, waitFor, tick, "re-auth then reopen")

	assert.Eventually(t, f.inState(domain.STREAM_STATE_OPEN), waitFor, tick)

	client.Emit(realtimeUpdate(500, 4, 120))
	assert.Eventually(t, func() bool {
		return f.cache.Watts() == 500
	}, waitFor, tick)
}

func TestPowerMeterReauthIsBounded(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 200*time.Millisecond)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)
	started := time.Now()
	client.Emit(realtimeUpdate(450, 3.75, 120, 118))

	assert.Eventually(t, func() bool {
		auths, _, _ := client.Counts()
		return auths == 1
	}, waitFor, tick)

	deadline := client.AuthDeadline()
	assert.False(t, deadline.IsZero(), "re-auth request carries a deadline")
	assert.WithinDuration(t, started.Add(REAUTH_TIMEOUT), deadline, 2*time.Second)
}

func TestPowerMeterReauthFailureIsNotFatal(t *testing.T) {

	client := sense.NewTestClient()
	client.AuthErr = errors.New("token rejected")
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 200*time.Millisecond)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)
	client.Emit(realtimeUpdate(450, 3.75, 120, 118))

	assert.Eventually(t, func() bool {
		auths, opens, _ := client.Counts()
		return auths == 1 && opens == 2
	}, waitFor, tick, "stream reopens even though re-auth failed")
	assert.Eventually(t, client.IsOpen, waitFor, tick)
}

func TestPowerMeterOpenFailureSchedulesReopen(t *testing.T) {

	client := sense.NewTestClient()
	client.OpenErr = errors.New("dial refused")
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, f.inState(domain.STREAM_STATE_WAITING_REOPEN), waitFor, tick)
	assert.Equal(t, []time.Duration{30 * time.Second}, f.recorded.pollDelays())
}

func TestPowerMeterRetriesSetup(t *testing.T) {

	client := sense.NewTestClient()
	var mu sync.Mutex
	calls := 0
	provider := func(_ context.Context) (port.EnergyStreamClient, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, sense.ErrAuthFailed
		}
		return client, nil
	}
	f := startPowerMeter(t, util.LoadTestConfig(), provider, 200*time.Millisecond)
	defer f.stop()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, f.inState(domain.STREAM_STATE_CONNECTING)())

	assert.Eventually(t, client.IsOpen, waitFor, tick)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestPowerMeterHealth(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 0)
	defer f.stop()

	assert.Eventually(t, client.IsOpen, waitFor, tick)

	hcr, err := healthCheck(f.system.Root, f.pid)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy)
	assert.Equal(t, domain.STREAM_STATE_OPEN, hcr.State)
}

func TestPowerMeterStopCancelsReopen(t *testing.T) {

	client := sense.NewTestClient()
	f := startPowerMeter(t, util.LoadTestConfig(), clientProvider(client), 300*time.Millisecond)

	assert.Eventually(t, client.IsOpen, waitFor, tick)
	client.Emit(realtimeUpdate(450, 3.75, 120, 118))
	assert.Eventually(t, f.inState(domain.STREAM_STATE_WAITING_REOPEN), waitFor, tick)

	f.system.Root.StopFuture(f.pid).Wait()
	time.Sleep(600 * time.Millisecond)

	auths, opens, _ := client.Counts()
	assert.Equal(t, 0, auths)
	assert.Equal(t, 1, opens)

	f.system.Shutdown()
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
