package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the controller.
type Config struct {
	// LogLevel is the minimum level of status lines (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// SettingsFile is the path of the persistent settings database.
	SettingsFile string `yaml:"settings_file"`
	// StatusFile is the path of the JSON status snapshot.
	StatusFile string `yaml:"status_file"`
	// Station configures the wireless station.
	Station StationConfig `yaml:"station"`
	// Time configures wall-clock synchronization.
	Time TimeConfig `yaml:"time"`
	// Output selects the output backend.
	Output OutputConfig `yaml:"output"`
	// Pump is the fixed-period pump schedule.
	Pump PumpConfig `yaml:"pump"`
	// Report is the periodic clock report.
	Report ReportConfig `yaml:"report"`
	// Indicator is the wall-clock driven indicator output.
	Indicator IndicatorConfig `yaml:"indicator"`
	// Status configures the status API and LAN advertisement.
	Status StatusConfig `yaml:"status"`
}

// StationConfig configures the wireless station.
type StationConfig struct {
	// Backend is the radio driver: simulated or nmcli.
	Backend string `yaml:"backend"`
	// SSID is the network to join.
	SSID string `yaml:"ssid"`
	// Passphrase is the WPA passphrase of the network.
	Passphrase string `yaml:"passphrase"`
	// Interface is the wireless interface name used by nmcli.
	Interface string `yaml:"interface"`
	// MaxRetries is the reconnect budget; unset means the default, zero
	// gives up after the first failed attempt.
	MaxRetries *int `yaml:"max_retries"`
	// ResolveTimeout bounds the startup wait; zero waits forever.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	// AddressTimeout bounds how long one attempt may wait for an address.
	AddressTimeout time.Duration `yaml:"address_timeout"`
	// Simulated configures the simulated radio.
	Simulated SimulatedConfig `yaml:"simulated"`
}

// SimulatedConfig configures the in-process radio.
type SimulatedConfig struct {
	// Failures is the number of attempts that fail before one succeeds.
	Failures int `yaml:"failures"`
	// Delay is the time one attempt takes.
	Delay time.Duration `yaml:"delay"`
	// Address is the address handed out on success.
	Address string `yaml:"address"`
}

// TimeConfig configures wall-clock synchronization.
type TimeConfig struct {
	// Server is the NTP server.
	Server string `yaml:"server"`
	// Zone is the IANA or POSIX-style zone name applied to every reading.
	Zone string `yaml:"zone"`
	// Timeout bounds one query.
	Timeout time.Duration `yaml:"timeout"`
	// ResyncInterval is how often the server is polled again.
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

// OutputConfig selects the output backend.
type OutputConfig struct {
	// Backend is memory, gpio or modbus.
	Backend string `yaml:"backend"`
	// Modbus configures the relay module backend.
	Modbus ModbusConfig `yaml:"modbus"`
}

// ModbusConfig configures a Modbus TCP relay module.
type ModbusConfig struct {
	// Endpoint is the host:port of the module.
	Endpoint string `yaml:"endpoint"`
	// UnitID is the slave id.
	UnitID uint8 `yaml:"unit_id"`
	// Timeout bounds one request.
	Timeout time.Duration `yaml:"timeout"`
	// CoilOffset is added to the line number to get the coil address.
	CoilOffset uint16 `yaml:"coil_offset"`
}

// PumpConfig is the fixed-period pump schedule.
type PumpConfig struct {
	// Disabled turns the pump loop off.
	Disabled bool `yaml:"disabled"`
	// Line is the output line of the pump.
	Line *uint8 `yaml:"line"`
	// Active is how long the pump runs per cycle.
	Active time.Duration `yaml:"active"`
	// Idle is how long the pump rests per cycle; unset means the default,
	// zero runs the pump continuously.
	Idle *time.Duration `yaml:"idle"`
}

// ReportConfig is the periodic clock report.
type ReportConfig struct {
	// Disabled turns the report loop off.
	Disabled bool `yaml:"disabled"`
	// Period is the report interval.
	Period time.Duration `yaml:"period"`
}

// IndicatorConfig is the wall-clock driven indicator.
type IndicatorConfig struct {
	// Enabled turns the indicator loop on.
	Enabled bool `yaml:"enabled"`
	// Line is the output line of the indicator.
	Line *uint8 `yaml:"line"`
	// Period is the evaluation interval.
	Period time.Duration `yaml:"period"`
	// Component is the time component whose parity drives the output:
	// second, minute or hour.
	Component string `yaml:"component"`
}

// StatusConfig configures the status API and LAN advertisement.
type StatusConfig struct {
	// ListenAddress enables the gRPC health API when set (":50051").
	ListenAddress string `yaml:"listen_addr"`
	// Advertise publishes the API over mDNS once connected.
	Advertise bool `yaml:"advertise"`
	// Instance is the mDNS instance name.
	Instance string `yaml:"instance"`
}

const (
	// DefaultConfigFilename is the default settings file name.
	DefaultConfigFilename = "garden-controller.yaml"
	// DefaultSettingsFilename is the default persistent settings database.
	DefaultSettingsFilename = "garden-controller.db"
	// DefaultStatusFilename is the default status snapshot file.
	DefaultStatusFilename = "garden-controller-status.json"
	// DefaultFilePermissions is the permission of files written by the controller.
	DefaultFilePermissions = 0o600

	// BackendSimulated is the in-process radio.
	BackendSimulated = "simulated"
	// BackendNMCLI drives NetworkManager.
	BackendNMCLI = "nmcli"
	// BackendMemory records output levels in memory.
	BackendMemory = "memory"
	// BackendGPIO drives the GPIO header.
	BackendGPIO = "gpio"
	// BackendModbus drives a Modbus TCP relay module.
	BackendModbus = "modbus"

	// DefaultMaxRetries is the reconnect budget.
	DefaultMaxRetries = 4
	// DefaultAddressTimeout bounds one attempt.
	DefaultAddressTimeout = 30 * time.Second
	// DefaultSimulatedDelay is the duration of a simulated attempt.
	DefaultSimulatedDelay = 500 * time.Millisecond
	// DefaultSimulatedAddress is handed out by the simulated radio.
	DefaultSimulatedAddress = "192.168.4.2"
	// DefaultTimeServer is the NTP server.
	DefaultTimeServer = "pool.ntp.org"
	// DefaultZone is the time zone.
	DefaultZone = "PST8PDT"
	// DefaultTimeTimeout bounds one NTP query.
	DefaultTimeTimeout = 5 * time.Second
	// DefaultResyncInterval is the NTP polling period.
	DefaultResyncInterval = time.Hour
	// DefaultModbusTimeout bounds one Modbus request.
	DefaultModbusTimeout = 2 * time.Second
	// DefaultPumpLine is the pump output line.
	DefaultPumpLine uint8 = 5
	// DefaultPumpActive is the pump run time.
	DefaultPumpActive = 5 * time.Second
	// DefaultPumpIdle is the pump rest time.
	DefaultPumpIdle = 5 * time.Second
	// DefaultReportPeriod is the clock report interval.
	DefaultReportPeriod = 10 * time.Second
	// DefaultIndicatorLine is the indicator output line.
	DefaultIndicatorLine uint8 = 2
	// DefaultIndicatorPeriod is the indicator evaluation interval.
	DefaultIndicatorPeriod = time.Second
	// DefaultIndicatorComponent is the indicator time component.
	DefaultIndicatorComponent = "second"
	// DefaultInstance is the mDNS instance name.
	DefaultInstance = "garden-controller"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownBackend is returned for unsupported backend names.
	errUnknownBackend = errors.New("unknown backend")
	// errSSIDRequired is returned when nmcli has no network to join.
	errSSIDRequired = errors.New("station ssid must be provided")
	// errInterfaceRequired is returned when nmcli has no interface.
	errInterfaceRequired = errors.New("station interface must be provided")
	// errEndpointRequired is returned when the modbus backend has no endpoint.
	errEndpointRequired = errors.New("modbus endpoint must be provided")
	// errNegative is returned for negative counts and durations.
	errNegative = errors.New("value must not be negative")
	// errLineConflict is returned when two loops share an output line.
	errLineConflict = errors.New("pump and indicator share an output line")
	// errUnknownComponent is returned for unsupported indicator components.
	errUnknownComponent = errors.New("unknown indicator component")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks cfg and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SettingsFile == "" {
		cfg.SettingsFile = DefaultSettingsFilename
	}

	if cfg.StatusFile == "" {
		cfg.StatusFile = DefaultStatusFilename
	}

	if err := validateStation(&cfg.Station); err != nil {
		return fmt.Errorf("station: %w", err)
	}

	if err := validateTime(&cfg.Time); err != nil {
		return fmt.Errorf("time: %w", err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if err := validateSchedules(cfg); err != nil {
		return err
	}

	if cfg.Status.Instance == "" {
		cfg.Status.Instance = DefaultInstance
	}

	if cfg.Status.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.Status.ListenAddress); err != nil {
			return fmt.Errorf("status: invalid listen address %q: %w", cfg.Status.ListenAddress, err)
		}
	}

	return nil
}

// validateStation checks the radio settings.
func validateStation(s *StationConfig) error {
	if s.Backend == "" {
		s.Backend = BackendSimulated
	}

	if (s.MaxRetries != nil && *s.MaxRetries < 0) || s.ResolveTimeout < 0 || s.AddressTimeout < 0 || s.Simulated.Failures < 0 {
		return errNegative
	}

	if s.MaxRetries == nil {
		retries := DefaultMaxRetries
		s.MaxRetries = &retries
	}

	if s.AddressTimeout == 0 {
		s.AddressTimeout = DefaultAddressTimeout
	}

	switch s.Backend {
	case BackendSimulated:
		if s.Simulated.Delay <= 0 {
			s.Simulated.Delay = DefaultSimulatedDelay
		}

		if s.Simulated.Address == "" {
			s.Simulated.Address = DefaultSimulatedAddress
		}

		if ip := net.ParseIP(s.Simulated.Address); ip == nil {
			return fmt.Errorf("invalid simulated address %q", s.Simulated.Address)
		}
	case BackendNMCLI:
		if s.SSID == "" {
			return errSSIDRequired
		}

		if s.Interface == "" {
			return errInterfaceRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, s.Backend)
	}

	return nil
}

// validateTime checks the synchronization settings.
func validateTime(t *TimeConfig) error {
	if t.Timeout < 0 || t.ResyncInterval < 0 {
		return errNegative
	}

	if t.Server == "" {
		t.Server = DefaultTimeServer
	}

	if t.Zone == "" {
		t.Zone = DefaultZone
	}

	if t.Timeout == 0 {
		t.Timeout = DefaultTimeTimeout
	}

	if t.ResyncInterval == 0 {
		t.ResyncInterval = DefaultResyncInterval
	}

	return nil
}

// validateOutput checks the output backend settings.
func validateOutput(o *OutputConfig) error {
	if o.Backend == "" {
		o.Backend = BackendMemory
	}

	switch o.Backend {
	case BackendMemory, BackendGPIO:
		return nil
	case BackendModbus:
		if o.Modbus.Endpoint == "" {
			return errEndpointRequired
		}

		if o.Modbus.Timeout <= 0 {
			o.Modbus.Timeout = DefaultModbusTimeout
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, o.Backend)
	}
}

// validateSchedules checks the loop schedules.
func validateSchedules(cfg *Config) error {
	p := &cfg.Pump
	if p.Active < 0 || (p.Idle != nil && *p.Idle < 0) || cfg.Report.Period < 0 || cfg.Indicator.Period < 0 {
		return fmt.Errorf("schedules: %w", errNegative)
	}

	if p.Line == nil {
		line := DefaultPumpLine
		p.Line = &line
	}

	if p.Active == 0 {
		p.Active = DefaultPumpActive
	}

	if p.Idle == nil {
		idle := DefaultPumpIdle
		p.Idle = &idle
	}

	if cfg.Report.Period == 0 {
		cfg.Report.Period = DefaultReportPeriod
	}

	ind := &cfg.Indicator
	if ind.Line == nil {
		line := DefaultIndicatorLine
		ind.Line = &line
	}

	if ind.Period == 0 {
		ind.Period = DefaultIndicatorPeriod
	}

	if ind.Component == "" {
		ind.Component = DefaultIndicatorComponent
	}

	switch ind.Component {
	case "second", "minute", "hour":
	default:
		return fmt.Errorf("indicator: %w: %q", errUnknownComponent, ind.Component)
	}

	if ind.Enabled && !p.Disabled && *ind.Line == *p.Line {
		return fmt.Errorf("%w: line %d", errLineConflict, *p.Line)
	}

	return nil
}
