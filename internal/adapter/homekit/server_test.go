package homekit

import (
	"testing"

	"github.com/berfenger/sense2homekit/internal/cache"
	"github.com/berfenger/sense2homekit/internal/util"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewServer(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.HomeKit.StoragePath = t.TempDir()
	cfg.HomeKit.Pin = "001-02-003"
	acc := NewPowerMeterAccessory(&cfg, cache.New(), zap.NewNop())

	server, err := NewServer(cfg.HomeKit, acc)
	assert.NoError(err)
	assert.Equal("00102003", server.Pin)
	assert.Equal(":51826", server.Addr)
}

func TestNewServerRejectsBadPin(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.HomeKit.StoragePath = t.TempDir()
	cfg.HomeKit.Pin = "1234"
	acc := NewPowerMeterAccessory(&cfg, cache.New(), zap.NewNop())

	server, err := NewServer(cfg.HomeKit, acc)
	assert.Error(t, err)
	assert.Nil(t, server)
}
