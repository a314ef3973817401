package service

import (
	"time"

	"github.com/berfenger/sense2homekit/internal/core/domain"
	"github.com/berfenger/sense2homekit/pkg/sense"
)

// ReduceRealtimeUpdate turns a feed message into a reading. Messages that are
// not realtime updates, or carry no payload, are rejected.
func ReduceRealtimeUpdate(ev sense.DataEvent, now time.Time) (domain.Reading, bool) {
	if ev.Type != sense.MESSAGE_TYPE_REALTIME_UPDATE || ev.Payload == nil {
		return domain.Reading{}, false
	}
	return domain.Reading{
		VoltageVolts: MeanVoltage(ev.Payload.Voltage),
		CurrentAmps:  ev.Payload.C,
		PowerWatts:   ev.Payload.W,
		UpdatedAt:    now,
	}, true
}

// MeanVoltage is the arithmetic mean of the channel voltages, 0 for no channels.
func MeanVoltage(channels []float64) float64 {
	if len(channels) == 0 {
		return 0
	}
	var volts float64
	for _, channel := range channels {
		volts += channel
	}
	return volts / float64(len(channels))
}
