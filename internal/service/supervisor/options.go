package supervisor

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/garden-controller/internal/driver/output"
	"github.com/oshokin/garden-controller/internal/service/clock"
	"github.com/oshokin/garden-controller/internal/service/discovery"
	"github.com/oshokin/garden-controller/internal/service/station"
)

// Advertiser publishes the controller on the local network.
type Advertiser interface {
	Advertise(ctx context.Context, info discovery.Info) error
	Stop()
}

// Option overrides a collaborator of the Controller.
type Option func(*Controller)

// WithClock sets the base clock of loops, radio and wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

// WithRadio replaces the configured radio backend.
func WithRadio(r station.Radio) Option {
	return func(ctrl *Controller) {
		ctrl.radio = r
	}
}

// WithDriver replaces the configured output backend.
func WithDriver(d output.Driver) Option {
	return func(ctrl *Controller) {
		ctrl.driver = d
	}
}

// WithTimeSource replaces the NTP client.
func WithTimeSource(s clock.Source) Option {
	return func(ctrl *Controller) {
		ctrl.source = s
	}
}

// WithAdvertiser replaces the mDNS advertiser.
func WithAdvertiser(a Advertiser) Option {
	return func(ctrl *Controller) {
		ctrl.advertiser = a
	}
}
