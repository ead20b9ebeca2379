package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/oshokin/garden-controller/internal/logger"
)

const (
	// ServiceType is the DNS-SD service type of the controller.
	ServiceType = "_garden._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// errPortRequired is returned when there is nothing to advertise.
var errPortRequired = errors.New("advertised port must be provided")

// Info describes the advertised instance.
type Info struct {
	// Instance is the DNS-SD instance name.
	Instance string
	// Port is the status API port.
	Port int
	// BootID identifies the current start.
	BootID string
	// Version is the build version.
	Version string
	// Address is the station address.
	Address netip.Addr
}

// TXT renders the TXT records of info.
func (i Info) TXT() []string {
	records := map[string]string{
		"boot":    i.BootID,
		"version": i.Version,
	}

	if i.Address.IsValid() {
		records["address"] = i.Address.String()
	}

	txt := make([]string, 0, len(records))

	for key, value := range records {
		if value == "" {
			continue
		}

		txt = append(txt, key+"="+value)
	}

	sort.Strings(txt)

	return txt
}

// shutdowner is a running registration.
type shutdowner interface {
	Shutdown()
}

// registerFunc publishes one service instance.
type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (shutdowner, error)

// Advertiser keeps at most one registration alive.
type Advertiser struct {
	mu       sync.Mutex
	server   shutdowner
	register registerFunc
}

// NewAdvertiser creates an advertiser backed by zeroconf.
func NewAdvertiser() *Advertiser {
	return &Advertiser{register: registerZeroconf}
}

// Advertise publishes info, replacing a previous registration.
func (a *Advertiser) Advertise(ctx context.Context, info Info) error {
	if info.Port <= 0 {
		return errPortRequired
	}

	instance := info.Instance
	if len(instance) > MaxInstanceNameLen {
		instance = instance[:MaxInstanceNameLen]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := a.register(instance, ServiceType, Domain, info.Port, info.TXT(), nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}

	a.server = server

	logger.InfoKV(ctx, "Advertising controller", "instance", instance, "port", info.Port, "txt", info.TXT())

	return nil
}

// Stop withdraws the registration.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

func registerZeroconf(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (shutdowner, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}

	return server, nil
}
