package actor

import (
	"context"
	"time"

	"github.com/berfenger/sense2homekit/internal/cache"
	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/domain"
	"github.com/berfenger/sense2homekit/internal/core/events"
	"github.com/berfenger/sense2homekit/internal/core/port"
	"github.com/berfenger/sense2homekit/internal/core/service"
	. "github.com/berfenger/sense2homekit/internal/util/actorutil"
	"github.com/berfenger/sense2homekit/pkg/sense"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	REAUTH_TIMEOUT = 10 * time.Second
)

// EnergyStreamProvider runs the vendor setup call and resolves to a ready client.
type EnergyStreamProvider func(ctx context.Context) (port.EnergyStreamClient, error)

// PowerMeterActor opens the realtime feed, keeps the first usable reading,
// closes the feed and reopens it after the poll interval.
type PowerMeterActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	cancelTimer  scheduler.CancelFunc
	config       *config.Config
	provider     EnergyStreamProvider
	client       port.EnergyStreamClient
	cache        *cache.ReadingCache
	eventStream  *eventstream.EventStream
	session      string
	pollInterval time.Duration

	logger *zap.Logger
}

type setupResult struct {
	client port.EnergyStreamClient
	err    error
}

type setupRetryTick struct {
}

type reopenTick struct {
}

type reauthResult struct {
	err error
}

func NewPowerMeterActor(config *config.Config, provider EnergyStreamProvider, cache *cache.ReadingCache, eventStream *eventstream.EventStream, logger *zap.Logger) *PowerMeterActor {
	act := &PowerMeterActor{
		config:       config,
		provider:     provider,
		cache:        cache,
		eventStream:  eventStream,
		pollInterval: config.EffectivePollInterval(),
		logger:       ActorLogger(domain.ACTOR_ID_POWERMETER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(PMConnectingState{
		actor: act,
	})
	return act
}

func (state *PowerMeterActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Connecting state

type PMConnectingState struct {
	ActorState
	actor *PowerMeterActor
}

func (state PMConnectingState) Name() string {
	return domain.STREAM_STATE_CONNECTING
}

func (state PMConnectingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("powermeter@connecting started", zap.Duration("poll_interval", state.actor.pollInterval))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.setup(ctx)
	case setupResult:
		if msg.err != nil {
			state.actor.logger.Error("powermeter@connecting setup failed", zap.Error(msg.err), zap.Duration("retry_in", state.actor.pollInterval))
			state.actor.eventStream.Publish(domain.StreamErrorEvent{Error: msg.err})
			state.actor.cancelTimer = state.actor.scheduler.RequestOnce(state.actor.pollInterval, ctx.Self(), setupRetryTick{})
			return
		}
		state.actor.logger.Info("powermeter@connecting client ready")
		state.actor.client = msg.client
		state.actor.forwardEvents(ctx)
		state.actor.openStream(ctx)
	case setupRetryTick:
		state.actor.cancelTimer = nil
		state.actor.setup(ctx)
	default:
		state.actor.receiveAny(ctx, state)
	}
}

// Open state

type PMOpenState struct {
	ActorState
	actor *PowerMeterActor
}

func (state PMOpenState) Name() string {
	return domain.STREAM_STATE_OPEN
}

func (state PMOpenState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sense.DataEvent:
		reading, ok := service.ReduceRealtimeUpdate(msg, time.Now())
		if !ok {
			return
		}
		state.actor.cache.Set(reading)
		state.actor.logger.Info("powermeter@open reading",
			zap.Float64("watts", reading.PowerWatts),
			zap.Float64("current", reading.CurrentAmps),
			zap.Float64("voltage", reading.VoltageVolts))
		for _, ev := range events.ReadingToUpdateEvents(reading) {
			state.actor.eventStream.Publish(ev)
		}
		state.actor.become(PMClosingState{
			actor: state.actor,
		})
		if err := state.actor.client.CloseStream(); err != nil {
			state.actor.logger.Error("powermeter@open close stream", zap.Error(err))
		}
	case sense.CloseEvent:
		state.actor.scheduleReopen(ctx, state, msg)
	default:
		state.actor.receiveAny(ctx, state)
	}
}

// Closing state: a reading was accepted and the close is in flight.

type PMClosingState struct {
	ActorState
	actor *PowerMeterActor
}

func (state PMClosingState) Name() string {
	return domain.STREAM_STATE_CLOSING
}

func (state PMClosingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sense.DataEvent:
	case sense.CloseEvent:
		state.actor.scheduleReopen(ctx, state, msg)
	default:
		state.actor.receiveAny(ctx, state)
	}
}

// Waiting reopen state

type PMWaitingReopenState struct {
	ActorState
	actor *PowerMeterActor
}

func (state PMWaitingReopenState) Name() string {
	return domain.STREAM_STATE_WAITING_REOPEN
}

func (state PMWaitingReopenState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case reopenTick:
		state.actor.logger.Debug("powermeter@waitingReopen tick")
		state.actor.cancelTimer = nil
		client := state.actor.client
		NewBackgroundTask(ctx, func() (*reauthResult, error) {
			authCtx, cancel := context.WithTimeout(context.Background(), REAUTH_TIMEOUT)
			defer cancel()
			return &reauthResult{err: client.GetAuth(authCtx)}, nil
		}).WithTimeout(REAUTH_TIMEOUT).Recover(func(err error) reauthResult {
			return reauthResult{err: err}
		}).PipeToAsync(ctx.Self())
	case reauthResult:
		if msg.err != nil {
			state.actor.logger.Error("powermeter@waitingReopen reauth failed", zap.Error(msg.err))
			state.actor.eventStream.Publish(domain.StreamErrorEvent{Session: state.actor.session, Error: msg.err})
		}
		state.actor.openStream(ctx)
	case sense.DataEvent:
	case sense.CloseEvent:
		state.actor.logger.Debug("powermeter@waitingReopen duplicate close ignored")
	default:
		state.actor.receiveAny(ctx, state)
	}
}

// receiveAny handles what every state answers the same way.
func (state *PowerMeterActor) receiveAny(ctx actor.Context, current ActorState) {
	switch msg := ctx.Message().(type) {
	case sense.ErrorEvent:
		state.logger.Error("powermeter@"+current.Name()+" stream error", zap.Error(msg.Err), zap.String("session", state.session))
		state.eventStream.Publish(domain.StreamErrorEvent{Session: state.session, Error: msg.Err})
	case domain.GetReadingRequest:
		ForRequest(msg).Respond(ctx, domain.GetReadingResponse{
			Reading: state.cache.Get(),
			State:   current.Name(),
			Session: state.session,
		})
	case domain.ActorHealthRequest:
		state.logger.Debug("powermeter@" + current.Name() + " ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POWERMETER,
			Healthy: state.client != nil,
			State:   current.Name(),
		})
	case *actor.Stopping, *actor.Restarting:
		state.logger.Debug("powermeter@" + current.Name() + " stopping")
		state.stop()
	case *actor.Stopped:
	default:
	}
}

func (state *PowerMeterActor) setup(ctx actor.Context) {
	provider := state.provider
	NewBackgroundTask(ctx, func() (*setupResult, error) {
		client, err := provider(context.Background())
		if err != nil {
			return nil, err
		}
		return &setupResult{client: client}, nil
	}).Recover(func(err error) setupResult {
		return setupResult{err: err}
	}).PipeToAsync(ctx.Self())
}

// forwardEvents moves client events into the mailbox until the client shuts down.
func (state *PowerMeterActor) forwardEvents(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	evs := state.client.Events()
	go func() {
		for ev := range evs {
			root.Send(self, ev)
		}
	}()
}

func (state *PowerMeterActor) openStream(ctx actor.Context) {
	state.session = uuid.NewString()
	state.logger.Debug("powermeter@open opening stream", zap.String("session", state.session))
	if err := state.client.OpenStream(context.Background()); err != nil {
		state.logger.Error("powermeter@open open stream", zap.Error(err))
		ctx.Send(ctx.Self(), sense.CloseEvent{WasClean: false, Reason: err.Error()})
	}
	state.become(PMOpenState{
		actor: state,
	})
}

func (state *PowerMeterActor) scheduleReopen(ctx actor.Context, current ActorState, msg sense.CloseEvent) {
	reason := "Normal"
	if !msg.WasClean {
		reason = msg.Reason
	}
	state.logger.Debug("powermeter@"+current.Name()+" stream closed", zap.String("reason", reason), zap.String("session", state.session))

	delay := state.pollInterval
	state.logger.Debug("powermeter@"+current.Name()+" reopening stream", zap.Duration("delay", delay))
	state.eventStream.Publish(domain.PollScheduledEvent{Delay: delay})
	state.cancelTimer = state.scheduler.RequestOnce(delay, ctx.Self(), reopenTick{})
	state.become(PMWaitingReopenState{
		actor: state,
	})
}

func (state *PowerMeterActor) become(next ActorState) {
	state.Become(next)
	for _, ev := range events.StreamStateToUpdateEvents(state.session, next.Name()) {
		state.eventStream.Publish(ev)
	}
}

func (state *PowerMeterActor) stop() {
	if state.cancelTimer != nil {
		state.cancelTimer()
		state.cancelTimer = nil
	}
	if state.client != nil {
		if err := state.client.CloseStream(); err != nil {
			state.logger.Warn("powermeter close stream", zap.Error(err))
		}
		state.client.Shutdown()
		state.client = nil
	}
}
