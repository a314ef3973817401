package sense

import "encoding/json"

const (
	MESSAGE_TYPE_REALTIME_UPDATE = "realtime_update"
	MESSAGE_TYPE_HELLO           = "hello"
	MESSAGE_TYPE_DATA_CHANGE     = "data_change"
)

// Event is one of DataEvent, ErrorEvent or CloseEvent.
type Event interface {
	senseEvent()
}

// DataEvent is a decoded realtime feed message.
// Payload is nil for message types that carry no power sample.
type DataEvent struct {
	Type    string           `json:"type"`
	Payload *RealtimePayload `json:"payload,omitempty"`
}

type RealtimePayload struct {
	Voltage []float64 `json:"voltage"`
	W       float64   `json:"w"`
	C       float64   `json:"c"`
	Hz      float64   `json:"hz,omitempty"`
}

type ErrorEvent struct {
	Err error
}

type CloseEvent struct {
	WasClean bool
	Reason   string
}

func (DataEvent) senseEvent()  {}
func (ErrorEvent) senseEvent() {}
func (CloseEvent) senseEvent() {}

type AuthResponse struct {
	Authorized  bool      `json:"authorized"`
	AccountId   int64     `json:"account_id"`
	UserId      int64     `json:"user_id"`
	AccessToken string    `json:"access_token"`
	Monitors    []Monitor `json:"monitors"`
}

type Monitor struct {
	Id           int64  `json:"id"`
	SerialNumber string `json:"serial_number"`
	TimeZone     string `json:"time_zone"`
}

// realtimeMessage keeps the payload raw so that non realtime messages with
// differently shaped payloads still decode.
type realtimeMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
