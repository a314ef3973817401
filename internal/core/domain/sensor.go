package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_MONITOR_POWER   = "monitor_power"
	SENSOR_ID_MONITOR_VOLTAGE = "monitor_voltage"
	SENSOR_ID_MONITOR_CURRENT = "monitor_current"
	SENSOR_ID_STREAM_STATE    = "stream_state"
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_CURRENT      = "current"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
	UNIT_WATT                 = "W"
	UNIT_VOLT                 = "V"
	UNIT_AMPERE               = "A"
	MONITOR_MANUFACTURER      = "Sense"
	MONITOR_MODEL             = "Energy Monitor"
	BRIDGE_MANUFACTURER       = "ACasal"
	BRIDGE_MODEL              = "sense2homekit"
	MONITOR_VOLTAGE_DECIMALS  = 1
	MONITOR_CURRENT_DECIMALS  = 2
	MONITOR_POWER_DECIMALS    = 0
	MONITOR_POWER_ICON        = "mdi:flash"
	MONITOR_STREAM_STATE_ICON = "mdi:lan-connect"
	MONITOR_CURRENT_ICON      = "mdi:current-ac"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sense2homekit_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: BRIDGE_MANUFACTURER,
		Model:        BRIDGE_MODEL,
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("sense2homekit %s", md5HashShort(baseTopic)),
	}
}

// MonitorDevice identifies the monitor by account, the only stable id known
// before the first stream is open.
func MonitorDevice(name, username string) Device {
	return Device{
		Id:           fmt.Sprintf("sense_monitor_%s", md5HashShort(username)),
		Manufacturer: MONITOR_MANUFACTURER,
		Model:        MONITOR_MODEL,
		Name:         name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func MonitorSensors(monitorDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Power draw
	sensors = append(sensors, GenericSensor{
		Device:            monitorDevice,
		Id:                SENSOR_ID_MONITOR_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: UNIT_WATT,
		Icon:              MONITOR_POWER_ICON,
		UniqueId:          uniqueId(monitorDevice.Id, SENSOR_ID_MONITOR_POWER),
	})

	// Mean voltage across channels
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(monitorDevice),
		Id:                SENSOR_ID_MONITOR_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: UNIT_VOLT,
		UniqueId:          uniqueId(monitorDevice.Id, SENSOR_ID_MONITOR_VOLTAGE),
	})

	// Current
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(monitorDevice),
		Id:                SENSOR_ID_MONITOR_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: UNIT_AMPERE,
		Icon:              MONITOR_CURRENT_ICON,
		UniqueId:          uniqueId(monitorDevice.Id, SENSOR_ID_MONITOR_CURRENT),
	})

	// Stream lifecycle state
	sensors = append(sensors, GenericSensor{
		Device:           IdDevice(monitorDevice),
		Id:               SENSOR_ID_STREAM_STATE,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Stream state",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		Icon:             MONITOR_STREAM_STATE_ICON,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(monitorDevice.Id, SENSOR_ID_STREAM_STATE),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
