package domain

import "time"

// Reading is the last accepted power meter sample.
type Reading struct {
	VoltageVolts float64   `json:"voltage"`
	CurrentAmps  float64   `json:"current"`
	PowerWatts   float64   `json:"watts"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r Reading) IsZero() bool {
	return r.UpdatedAt.IsZero()
}

// Power meter stream states.
const (
	STREAM_STATE_CONNECTING     = "connecting"
	STREAM_STATE_OPEN           = "open"
	STREAM_STATE_CLOSING        = "closing"
	STREAM_STATE_WAITING_REOPEN = "waitingReopen"
)
