package domain

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_POWERMETER   = "powermeter"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type GetReadingRequest struct {
	ActorRequestMixIn
}

type GetReadingResponse struct {
	ActorResponseMixIn
	Reading Reading
	State   string
	Session string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// RefreshDiscoveryRequest asks for discovery config to be published again,
// e.g. after Home Assistant restarted.
type RefreshDiscoveryRequest struct {
	ActorRequestMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// Stream lifecycle notifications published on the event stream.

type StreamStateEvent struct {
	Session string
	State   string
}

type StreamErrorEvent struct {
	Session string
	Error   error
}

type PollScheduledEvent struct {
	Delay time.Duration
}

type ReadingUpdatedEvent struct {
	Reading Reading
}
