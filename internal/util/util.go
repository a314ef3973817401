package util

import (
	"github.com/berfenger/sense2homekit/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:        zap.DebugLevel,
		Username:        "user@example.com",
		Password:        "secret",
		Name:            config.ACCESSORY_NAME,
		PollingInterval: 30,
		HomeKit: config.HomeKitConfig{
			Enable:      false,
			Pin:         config.DEFAULT_HOMEKIT_PIN,
			Port:        config.DEFAULT_HOMEKIT_PORT,
			StoragePath: config.DEFAULT_HOMEKIT_STORAGE_PATH,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "sense2homekit",
		},
		Port: 8080,
	}
}
