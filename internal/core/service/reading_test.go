package service

import (
	"testing"
	"time"

	"github.com/berfenger/sense2homekit/pkg/sense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceRealtimeUpdate(t *testing.T) {

	require := require.New(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r, ok := ReduceRealtimeUpdate(sense.DataEvent{
		Type: sense.MESSAGE_TYPE_REALTIME_UPDATE,
		Payload: &sense.RealtimePayload{
			Voltage: []float64{120, 118},
			W:       450,
			C:       3.75,
		},
	}, now)

	require.True(ok)
	require.Equal(119.0, r.VoltageVolts)
	require.Equal(450.0, r.PowerWatts)
	require.Equal(3.75, r.CurrentAmps)
	require.Equal(now, r.UpdatedAt)
}

func TestReduceIgnoresOtherMessages(t *testing.T) {

	assert := assert.New(t)

	_, ok := ReduceRealtimeUpdate(sense.DataEvent{
		Type:    sense.MESSAGE_TYPE_HELLO,
		Payload: &sense.RealtimePayload{W: 10},
	}, time.Now())
	assert.False(ok, "wrong type")

	_, ok = ReduceRealtimeUpdate(sense.DataEvent{
		Type: sense.MESSAGE_TYPE_REALTIME_UPDATE,
	}, time.Now())
	assert.False(ok, "missing payload")
}

func TestMeanVoltage(t *testing.T) {

	assert := assert.New(t)

	cases := []struct {
		channels []float64
		mean     float64
	}{
		{[]float64{120, 118}, 119},
		{[]float64{121.5}, 121.5},
		{[]float64{230, 231, 229}, 230},
		{[]float64{0.5, 0.25, 0.25, 1}, 0.5},
		{nil, 0},
	}
	for _, c := range cases {
		assert.Equal(c.mean, MeanVoltage(c.channels), "channels %v", c.channels)
	}
}
