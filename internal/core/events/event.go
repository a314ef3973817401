package events

import (
	. "github.com/berfenger/sense2homekit/internal/core/domain"
)

func ReadingToUpdateEvents(r Reading) []any {
	var events []any

	// Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MONITOR_POWER,
		},
		Value:    r.PowerWatts,
		Decimals: MONITOR_POWER_DECIMALS,
	})
	// Voltage
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MONITOR_VOLTAGE,
		},
		Value:    r.VoltageVolts,
		Decimals: MONITOR_VOLTAGE_DECIMALS,
	})
	// Current
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MONITOR_CURRENT,
		},
		Value:    r.CurrentAmps,
		Decimals: MONITOR_CURRENT_DECIMALS,
	})
	events = append(events, ReadingUpdatedEvent{Reading: r})

	return events
}

func StreamStateToUpdateEvents(session, state string) []any {
	return []any{
		StreamStateEvent{Session: session, State: state},
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_STREAM_STATE,
			},
			Value: state,
		},
	}
}
