package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults checks that an empty config takes the firmware defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, BackendSimulated, cfg.Station.Backend)
	require.Equal(t, DefaultMaxRetries, *cfg.Station.MaxRetries)
	require.Zero(t, cfg.Station.ResolveTimeout)
	require.Equal(t, DefaultTimeServer, cfg.Time.Server)
	require.Equal(t, "PST8PDT", cfg.Time.Zone)
	require.Equal(t, BackendMemory, cfg.Output.Backend)
	require.Equal(t, uint8(5), *cfg.Pump.Line)
	require.Equal(t, 5*time.Second, cfg.Pump.Active)
	require.Equal(t, 5*time.Second, *cfg.Pump.Idle)
	require.Equal(t, 10*time.Second, cfg.Report.Period)
	require.Equal(t, DefaultSettingsFilename, cfg.SettingsFile)
	require.Equal(t, DefaultInstance, cfg.Status.Instance)
}

// TestValidate_Errors covers the rejected configurations.
func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	var (
		line    = DefaultPumpLine
		retries = -1
		idle    = -time.Second
	)

	cases := map[string]*Config{
		"nil":              nil,
		"unknown radio":    {Station: StationConfig{Backend: "zigbee"}},
		"nmcli no ssid":    {Station: StationConfig{Backend: BackendNMCLI, Interface: "wlan0"}},
		"nmcli no iface":   {Station: StationConfig{Backend: BackendNMCLI, SSID: "garden"}},
		"negative retries": {Station: StationConfig{MaxRetries: &retries}},
		"negative idle":    {Pump: PumpConfig{Idle: &idle}},
		"bad sim address":  {Station: StationConfig{Simulated: SimulatedConfig{Address: "nope"}}},
		"unknown output":   {Output: OutputConfig{Backend: "i2c"}},
		"modbus endpoint":  {Output: OutputConfig{Backend: BackendModbus}},
		"negative active":  {Pump: PumpConfig{Active: -time.Second}},
		"bad component":    {Indicator: IndicatorConfig{Component: "week"}},
		"line conflict":    {Indicator: IndicatorConfig{Enabled: true, Line: &line}},
		"bad listen":       {Status: StatusConfig{ListenAddress: "nowhere"}},
	}

	for name, cfg := range cases {
		require.Error(t, Validate(cfg), name)
	}
}

// TestValidate_DisabledPumpFreesLine allows the indicator on the pump line when the pump is off.
func TestValidate_DisabledPumpFreesLine(t *testing.T) {
	t.Parallel()

	line := DefaultPumpLine
	cfg := &Config{
		Pump:      PumpConfig{Disabled: true},
		Indicator: IndicatorConfig{Enabled: true, Line: &line},
	}

	require.NoError(t, Validate(cfg))
}

// TestLoad_ExplicitZeros verifies explicit zero retries and idle survive the defaults.
func TestLoad_ExplicitZeros(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garden.yaml")
	contents := []byte(`
station:
  max_retries: 0
pump:
  active: 1m
  idle: 0s
`)
	require.NoError(t, os.WriteFile(path, contents, DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, *cfg.Station.MaxRetries)
	require.Zero(t, *cfg.Pump.Idle)
	require.Equal(t, time.Minute, cfg.Pump.Active)

	require.NoError(t, Save(path, cfg))

	cfg, err = Load(path)
	require.NoError(t, err)
	require.Zero(t, *cfg.Station.MaxRetries)
	require.Zero(t, *cfg.Pump.Idle)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "garden.yaml")

	cfg := &Config{
		Station: StationConfig{
			Backend:        BackendNMCLI,
			SSID:           "greenhouse",
			Passphrase:     "tomatoes",
			Interface:      "wlan0",
			ResolveTimeout: 2 * time.Minute,
		},
		Time:   TimeConfig{Zone: "Europe/Berlin"},
		Output: OutputConfig{Backend: BackendModbus, Modbus: ModbusConfig{Endpoint: "10.0.0.50:502", UnitID: 3}},
		Status: StatusConfig{ListenAddress: ":50051", Advertise: true},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Station, loaded.Station)
	require.Equal(t, cfg.Output, loaded.Output)
	require.Equal(t, "Europe/Berlin", loaded.Time.Zone)
	require.Equal(t, ":50051", loaded.Status.ListenAddress)
	require.Equal(t, *cfg.Pump.Line, *loaded.Pump.Line)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_YAMLDurations parses human durations.
func TestLoad_YAMLDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garden.yaml")
	contents := []byte(`
pump:
  line: 12
  active: 30s
  idle: 15m
report:
  period: 1m
`)
	require.NoError(t, os.WriteFile(path, contents, DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint8(12), *cfg.Pump.Line)
	require.Equal(t, 30*time.Second, cfg.Pump.Active)
	require.Equal(t, 15*time.Minute, *cfg.Pump.Idle)
	require.Equal(t, time.Minute, cfg.Report.Period)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
