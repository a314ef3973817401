package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/berfenger/sense2homekit/internal/config"

	"github.com/brutella/hap"
	"go.uber.org/zap"
)

// NewServer builds the HAP server publishing the accessory. Pairing data is
// kept under the configured storage path.
func NewServer(cfg config.HomeKitConfig, acc *PowerMeterAccessory) (*hap.Server, error) {
	pin, err := config.CheckHomeKitPin(cfg.Pin)
	if err != nil {
		return nil, err
	}
	store := hap.NewFsStore(cfg.StoragePath)
	server, err := hap.NewServer(store, acc.A)
	if err != nil {
		return nil, fmt.Errorf("creating homekit server: %w", err)
	}
	server.Pin = pin
	if cfg.Port > 0 {
		server.Addr = fmt.Sprintf(":%d", cfg.Port)
	}
	return server, nil
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, server *hap.Server, logger *zap.Logger) error {
	logger.Info("starting homekit server", zap.String("addr", server.Addr))
	err := server.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
