package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	ACCESSORY_NAME                  = "SensePowerMeter"
	DEFAULT_POLLING_INTERVAL_SECS   = 60
	MIN_POLLING_INTERVAL_SECS       = 10
	DEFAULT_HOMEKIT_PORT            = 51826
	DEFAULT_HOMEKIT_PIN             = "00102003"
	DEFAULT_HOMEKIT_STORAGE_PATH    = "./db"
	DEFAULT_SENSE_HTTP_TIMEOUT_SECS = 30
)

type Config struct {
	LogLevel zapcore.Level

	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	PollingInterval int    `mapstructure:"polling_interval"`
	Verbose         bool   `mapstructure:"verbose"`

	Sense   SenseConfig   `mapstructure:"sense"`
	HomeKit HomeKitConfig `mapstructure:"homekit"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Port    uint          `mapstructure:"port"`
	HttpLog bool          `mapstructure:"http_log"`
}

type SenseConfig struct {
	APIURL             string `mapstructure:"api_url"`
	RealtimeURL        string `mapstructure:"realtime_url"`
	HTTPTimeoutSeconds uint   `mapstructure:"http_timeout_seconds"`
}

type HomeKitConfig struct {
	Enable      bool   `mapstructure:"enable"`
	Pin         string `mapstructure:"pin"`
	Port        uint   `mapstructure:"port"`
	StoragePath string `mapstructure:"storage_path"`
	EveEnergy   bool   `mapstructure:"eve_energy"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// DisplayName is the configured accessory name, or the accessory default.
func (c Config) DisplayName() string {
	if c.Name == "" {
		return ACCESSORY_NAME
	}
	return c.Name
}

// EffectivePollInterval is the delay between a stream close and the next open.
// Intervals of 10 seconds or less fall back to the 60 second default.
func (c Config) EffectivePollInterval() time.Duration {
	interval := c.PollingInterval
	if interval <= MIN_POLLING_INTERVAL_SECS {
		interval = DEFAULT_POLLING_INTERVAL_SECS
	}
	return time.Duration(interval) * time.Second
}

func (c Config) SenseHTTPTimeout() time.Duration {
	if c.Sense.HTTPTimeoutSeconds == 0 {
		return DEFAULT_SENSE_HTTP_TIMEOUT_SECS * time.Second
	}
	return time.Duration(c.Sense.HTTPTimeoutSeconds) * time.Second
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckHomeKitPin normalizes a pairing code to the 8 digit form HAP expects.
// "123-45-678" and "12345678" are both accepted.
func CheckHomeKitPin(pin string) (string, error) {
	digits := strings.ReplaceAll(pin, "-", "")
	pinRegexp := regexp.MustCompile("^[0-9]{8}$")
	if !pinRegexp.MatchString(digits) {
		return "", errors.New("invalid homekit pin. must have 8 digits")
	}
	return digits, nil
}
