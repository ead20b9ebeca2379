package radio

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/config"
	"github.com/oshokin/garden-controller/internal/service/station"
)

// New builds the radio selected by cfg.
//
//nolint:ireturn // Callers pick the backend at runtime.
func New(cfg config.StationConfig, clock clockwork.Clock) (station.Radio, error) {
	switch cfg.Backend {
	case config.BackendSimulated, "":
		return NewSimulated(cfg.Simulated, clock)
	case config.BackendNMCLI:
		return NewNMCLI(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported station backend %q", cfg.Backend)
	}
}
