package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

type testMessage struct {
	topic   string
	payload string
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 1 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 0 }
func (m testMessage) Payload() []byte   { return []byte(m.payload) }
func (m testMessage) Ack()              {}

func testClient(discoveryTopic string) *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "loremtopic",
			HADiscoveryTopic: discoveryTopic,
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestStateTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient("")
	assert.Equal("loremtopic/bridge/state", c.BridgeStateTopic())
	assert.Equal("loremtopic/sensor/monitor_power/state", c.SensorStateTopic(domain.SENSOR_ID_MONITOR_POWER))
	assert.Equal("loremtopic/reading", c.ReadingTopic())
	assert.Equal("homeassistant/status", c.HAStatusTopic())
}

func TestCustomDiscoveryPrefix(t *testing.T) {

	assert := assert.New(t)

	c := testClient("ha")
	assert.Equal("ha/status", c.HAStatusTopic())

	monitor := domain.MonitorDevice("SensePowerMeter", "user@example.com")
	sensor := domain.MonitorSensors(monitor)[0]
	assert.Equal("ha/sensor/"+monitor.Id+"/monitor_power/config", HADiscoverySensorTopic(c, sensor))
}

func TestHAOnlineMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient("")
	assert.True(c.IsHAOnlineMessage(testMessage{topic: "homeassistant/status", payload: "online"}))
	assert.False(c.IsHAOnlineMessage(testMessage{topic: "homeassistant/status", payload: "offline"}), "offline")
	assert.False(c.IsHAOnlineMessage(testMessage{topic: "loremtopic/status", payload: "online"}), "other topic")
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient("")
	bridge := domain.BridgeDevice("loremtopic")
	bridgeSensor := domain.BridgeSensors(bridge)[0]

	msg := GenericSensorToHADiscoveryMessage(c, bridgeSensor)
	assert.Equal("loremtopic/bridge/state", msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)

	monitor := domain.MonitorDevice("SensePowerMeter", "user@example.com")
	power := domain.MonitorSensors(monitor)[0]
	msg = GenericSensorToHADiscoveryMessage(c, power)
	assert.Equal("loremtopic/sensor/monitor_power/state", msg.StateTopic)
	assert.Equal(domain.UNIT_WATT, msg.UnitOfMeasurement)
	assert.Equal("mqtt", msg.Platform)

	payload, err := json.Marshal(msg)
	assert.NoError(err)
	assert.Contains(string(payload), `"identifiers":["`+monitor.Id+`"]`)
	assert.NotContains(string(payload), "payload_on")
}
