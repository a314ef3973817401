package port

import (
	"context"

	"github.com/berfenger/sense2homekit/pkg/sense"
)

// EnergyStreamClient is the vendor client the power meter drives. Lifecycle
// outcomes are reported asynchronously on Events.
type EnergyStreamClient interface {
	GetAuth(ctx context.Context) error
	OpenStream(ctx context.Context) error
	CloseStream() error
	Events() <-chan sense.Event
	Shutdown()
}

// ensure interface compliance
var (
	_ EnergyStreamClient = (*sense.Client)(nil)
	_ EnergyStreamClient = (*sense.TestClient)(nil)
)
