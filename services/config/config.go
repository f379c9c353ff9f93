// Package config loads the host-side YAML configuration and publishes
// it on the bus.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/types"
)

// Config is the file layout.
type Config struct {
	Firmware FirmwareConfig   `yaml:"firmware"`
	Sim      SimConfig        `yaml:"sim"`
	Monitor  MonitorConfig    `yaml:"monitor"`
	Host     HostConfig       `yaml:"host"`
	Diag     types.DiagConfig `yaml:"diag"`
}

// FirmwareConfig mirrors firmware.Config with file-friendly names.
type FirmwareConfig struct {
	LoopPeriod    time.Duration `yaml:"loop_period"`
	LowLoopPeriod time.Duration `yaml:"low_loop_period"`
	IdlePolls     uint8         `yaml:"idle_polls"`
	Version       string        `yaml:"version"`

	ReferenceMV   uint32 `yaml:"reference_mv"`
	CeilingMV     uint16 `yaml:"ceiling_mv"`
	PowerOffMV    uint16 `yaml:"power_off_mv"`
	DiodeLowMV    uint16 `yaml:"diode_low_mv"`
	DiodeHighMV   uint16 `yaml:"diode_high_mv"`
	Settle        uint8  `yaml:"settle"`
	LowPolls      uint16 `yaml:"low_polls"`
	BatteryMinMV  uint16 `yaml:"battery_min_mv"`
	HysteresisMV  uint16 `yaml:"hysteresis_mv"`
	DisplayPolls  uint16 `yaml:"display_polls"`
	BlinkPolls    uint16 `yaml:"blink_polls"`
	Heartbeat     uint16 `yaml:"heartbeat"`
	LoadRetries   int    `yaml:"load_retries"`
	PreloadByte   uint8  `yaml:"preload_byte"`
	LowClockRatio uint8  `yaml:"low_clock_ratio"`
}

// SimConfig is the simulated board's analog front end.
type SimConfig struct {
	SupplyMV    int           `yaml:"supply_mv"`
	BoardVoutMV int           `yaml:"board_vout_mv"`
	ReferenceMV int           `yaml:"reference_mv"`
	TimerPeriod time.Duration `yaml:"timer_period"`
}

// MonitorConfig is the diagnostic serial port.
type MonitorConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// HostConfig drives the host-side link controller.
type HostConfig struct {
	SyncTimeout time.Duration `yaml:"sync_timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// Default returns the firmware constants and typical host settings.
func Default() *Config {
	fw := firmware.DefaultConfig()
	return &Config{
		Firmware: FirmwareConfig{
			LoopPeriod:    fw.LoopPeriod,
			LowLoopPeriod: fw.LowLoopPeriod,
			IdlePolls:     fw.IdlePolls,
			Version:       fw.Power.Version,
			ReferenceMV:   fw.Analog.ReferenceMilliV,
			CeilingMV:     fw.Analog.CeilingMilliV,
			PowerOffMV:    fw.Power.PowerOffMilliV,
			DiodeLowMV:    fw.Analog.DiodeLowPowerMilliV,
			DiodeHighMV:   fw.Analog.DiodeHighPowerMilliV,
			Settle:        fw.Analog.Settle,
			LowPolls:      fw.Power.LowPolls,
			BatteryMinMV:  fw.Power.BatteryMinMilliV,
			HysteresisMV:  fw.Power.HysteresisMilliV,
			DisplayPolls:  fw.Power.DisplayTimeoutPolls,
			BlinkPolls:    fw.Power.BlinkPolls,
			Heartbeat:     fw.Tick.Heartbeat,
			LoadRetries:   fw.Link.LoadRetries,
			PreloadByte:   fw.Link.Preload,
			LowClockRatio: fw.Tick.LowDivider,
		},
		Sim: SimConfig{
			SupplyMV:    4000,
			BoardVoutMV: 3300,
			ReferenceMV: 585,
			TimerPeriod: fw.Tick.Period,
		},
		Monitor: MonitorConfig{
			Port:        "/dev/ttyUSB0",
			Baud:        9600,
			ReadTimeout: 500 * time.Millisecond,
		},
		Host: HostConfig{
			SyncTimeout: 2 * time.Second,
			RetryDelay:  25 * time.Millisecond,
		},
		Diag: types.DiagConfig{Reports: true, Lines: true},
	}
}

// Load reads filename. A missing file yields the defaults; missing
// fields are filled from the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "parse", err)
	}
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()
	f, d := &c.Firmware, def.Firmware

	if f.LoopPeriod == 0 {
		f.LoopPeriod = d.LoopPeriod
	}
	if f.LowLoopPeriod == 0 {
		f.LowLoopPeriod = d.LowLoopPeriod
	}
	if f.IdlePolls == 0 {
		f.IdlePolls = d.IdlePolls
	}
	if f.Version == "" {
		f.Version = d.Version
	}
	if f.ReferenceMV == 0 {
		f.ReferenceMV = d.ReferenceMV
	}
	if f.CeilingMV == 0 {
		f.CeilingMV = d.CeilingMV
	}
	if f.PowerOffMV == 0 {
		f.PowerOffMV = d.PowerOffMV
	}
	if f.Settle == 0 {
		f.Settle = d.Settle
	}
	if f.LowPolls == 0 {
		f.LowPolls = d.LowPolls
	}
	if f.BatteryMinMV == 0 {
		f.BatteryMinMV = d.BatteryMinMV
	}
	if f.DisplayPolls == 0 {
		f.DisplayPolls = d.DisplayPolls
	}
	if f.BlinkPolls == 0 {
		f.BlinkPolls = d.BlinkPolls
	}
	if f.Heartbeat == 0 {
		f.Heartbeat = d.Heartbeat
	}
	if f.LoadRetries == 0 {
		f.LoadRetries = d.LoadRetries
	}
	if f.LowClockRatio == 0 {
		f.LowClockRatio = d.LowClockRatio
	}

	if c.Sim.SupplyMV == 0 {
		c.Sim.SupplyMV = def.Sim.SupplyMV
	}
	if c.Sim.ReferenceMV == 0 {
		c.Sim.ReferenceMV = def.Sim.ReferenceMV
	}
	if c.Sim.TimerPeriod == 0 {
		c.Sim.TimerPeriod = def.Sim.TimerPeriod
	}

	if c.Monitor.Port == "" {
		c.Monitor.Port = def.Monitor.Port
	}
	if c.Monitor.Baud == 0 {
		c.Monitor.Baud = def.Monitor.Baud
	}
	if c.Monitor.ReadTimeout == 0 {
		c.Monitor.ReadTimeout = def.Monitor.ReadTimeout
	}

	if c.Host.SyncTimeout == 0 {
		c.Host.SyncTimeout = def.Host.SyncTimeout
	}
	if c.Host.RetryDelay == 0 {
		c.Host.RetryDelay = def.Host.RetryDelay
	}
}

// Validate checks the whole file, firmware section included.
func (c *Config) Validate() error {
	if err := c.ToFirmware().Validate(); err != nil {
		return errcode.Wrap(errcode.InvalidConfig, "firmware", err)
	}
	if c.Sim.SupplyMV <= 0 || c.Sim.BoardVoutMV < 0 {
		return errcode.New(errcode.InvalidConfig, "sim", "supply must be positive")
	}
	if c.Monitor.Baud <= 0 {
		return errcode.New(errcode.InvalidConfig, "monitor", "baud must be positive")
	}
	if c.Host.SyncTimeout <= 0 {
		return errcode.New(errcode.InvalidConfig, "host", "sync timeout must be positive")
	}
	return nil
}

// ToFirmware builds the firmware configuration.
func (c *Config) ToFirmware() firmware.Config {
	f := c.Firmware
	cfg := firmware.DefaultConfig()

	cfg.LoopPeriod = f.LoopPeriod
	cfg.LowLoopPeriod = f.LowLoopPeriod
	cfg.IdlePolls = f.IdlePolls

	cfg.Link.Preload = f.PreloadByte
	cfg.Link.LoadRetries = f.LoadRetries

	cfg.Analog.ReferenceMilliV = f.ReferenceMV
	cfg.Analog.CeilingMilliV = f.CeilingMV
	cfg.Analog.PowerOffMilliV = f.PowerOffMV
	cfg.Analog.DiodeLowPowerMilliV = f.DiodeLowMV
	cfg.Analog.DiodeHighPowerMilliV = f.DiodeHighMV
	cfg.Analog.Settle = f.Settle

	cfg.Tick.Period = c.Sim.TimerPeriod
	cfg.Tick.Heartbeat = f.Heartbeat
	cfg.Tick.LowDivider = f.LowClockRatio

	cfg.Power.PowerOffMilliV = f.PowerOffMV
	cfg.Power.LowPolls = f.LowPolls
	cfg.Power.BatteryMinMilliV = f.BatteryMinMV
	cfg.Power.HysteresisMilliV = f.HysteresisMV
	cfg.Power.DisplayTimeoutPolls = f.DisplayPolls
	cfg.Power.BlinkPolls = f.BlinkPolls
	cfg.Power.Version = f.Version
	return cfg
}
