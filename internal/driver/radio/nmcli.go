package radio

import (
	"context"
	"crypto/sha1" //nolint:gosec // WPA2-PSK is defined over HMAC-SHA1.
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/oshokin/garden-controller/internal/config"
	domain "github.com/oshokin/garden-controller/internal/domain/station"
	"github.com/oshokin/garden-controller/internal/logger"
)

const (
	// pskIterations and pskLength come from IEEE 802.11i.
	pskIterations = 4096
	pskLength     = 32

	// addressPollInterval is how often the interface is checked for an address.
	addressPollInterval = 250 * time.Millisecond
)

var (
	// errNotStarted is returned by Connect before Start.
	errNotStarted = errors.New("radio not started")
	// errNoInterface is returned when the wireless interface is missing.
	errNoInterface = errors.New("wireless interface not found")
)

// commandRunner runs an external command to completion.
type commandRunner func(ctx context.Context, name string, args ...string) error

// addressLister returns the addresses of a network interface.
type addressLister func(iface string) ([]net.Addr, error)

// NMCLI joins a network through NetworkManager and watches the interface
// for an IPv4 address.
type NMCLI struct {
	cfg   config.StationConfig
	run   commandRunner
	addrs addressLister
	poll  time.Duration

	mu     sync.Mutex
	notify func(domain.Event)
}

// NewNMCLI creates a NetworkManager radio.
func NewNMCLI(cfg config.StationConfig) *NMCLI {
	return &NMCLI{
		cfg:   cfg,
		run:   runCommand,
		addrs: interfaceAddrs,
		poll:  addressPollInterval,
	}
}

// Start checks the interface and announces the station.
func (r *NMCLI) Start(ctx context.Context, notify func(domain.Event)) error {
	if _, err := r.addrs(r.cfg.Interface); err != nil {
		return fmt.Errorf("%w: %s: %w", errNoInterface, r.cfg.Interface, err)
	}

	r.mu.Lock()
	r.notify = notify
	r.mu.Unlock()

	logger.InfoKV(ctx, "Station interface ready", "interface", r.cfg.Interface, "ssid", r.cfg.SSID)

	go notify(domain.StationStarted())

	return nil
}

// Connect runs one association attempt in the background.
func (r *NMCLI) Connect(ctx context.Context) error {
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()

	if notify == nil {
		return errNotStarted
	}

	go r.attempt(ctx, notify)

	return nil
}

// attempt associates and reports the result.
func (r *NMCLI) attempt(ctx context.Context, notify func(domain.Event)) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.AddressTimeout)
	defer cancel()

	if err := r.run(ctx, "nmcli", r.connectArgs()...); err != nil {
		logger.DebugKV(ctx, "nmcli connect failed", "error", err)
		notify(domain.Disconnected())

		return
	}

	addr, err := r.waitAddress(ctx)
	if err != nil {
		logger.DebugKV(ctx, "No address on interface", "interface", r.cfg.Interface, "error", err)
		notify(domain.Disconnected())

		return
	}

	notify(domain.AddressAcquired(addr))
}

// connectArgs builds the nmcli command line.
func (r *NMCLI) connectArgs() []string {
	wait := max(int(r.cfg.AddressTimeout/time.Second), 1)

	args := []string{
		"--wait", strconv.Itoa(wait),
		"device", "wifi", "connect", r.cfg.SSID,
	}

	if r.cfg.Passphrase != "" {
		args = append(args, "password", DerivePSK(r.cfg.SSID, r.cfg.Passphrase))
	}

	return append(args, "ifname", r.cfg.Interface)
}

// waitAddress polls the interface until it has an IPv4 address.
func (r *NMCLI) waitAddress(ctx context.Context) (netip.Addr, error) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		addrs, err := r.addrs(r.cfg.Interface)
		if err != nil {
			return netip.Addr{}, err
		}

		if addr, ok := firstIPv4(addrs); ok {
			return addr, nil
		}

		select {
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DerivePSK computes the hex WPA2 pre-shared key of a passphrase. The key
// grants the same network access as the passphrase.
func DerivePSK(ssid, passphrase string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), pskIterations, pskLength, sha1.New)

	return hex.EncodeToString(key)
}

// firstIPv4 returns the first global IPv4 address.
func firstIPv4(addrs []net.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}

		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}

		addr = addr.Unmap()
		if addr.Is4() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() {
			return addr, true
		}
	}

	return netip.Addr{}, false
}

// runCommand runs a command and folds its output into the error.
func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}

	return nil
}

// interfaceAddrs lists the addresses of a named interface.
func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}

	return iface.Addrs()
}
