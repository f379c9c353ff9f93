// Package power decides between active and low-power operation and
// performs the transitions.
//
// Low power is entered once the board output has stayed below the
// power-off threshold for the configured number of polls and no
// diagnostic reader is attached. It is left on the first poll that
// reads the output back above the threshold. While in low power the
// link is stopped, its pins float and the clock runs slow; the LEDs only
// show the display sub-mode, the shutter button and a heartbeat.
package power

import (
	"errors"
	"time"

	"auxcam-go/firmware/buttons"
	"auxcam-go/firmware/led"
	"auxcam-go/hal"
)

var (
	ErrLowPolls   = errors.New("power: low poll count must be positive")
	ErrThreshold  = errors.New("power: power-off threshold must be positive")
	ErrBlinkPolls = errors.New("power: blink polls must be positive")
)

type Mode uint8

const (
	Active Mode = iota
	LowPower
)

func (m Mode) String() string {
	if m == LowPower {
		return "low_power"
	}
	return "active"
}

type Config struct {
	// PowerOffMilliV is the board output below which a poll counts as low.
	PowerOffMilliV uint16
	// LowPolls is how many consecutive low polls must be exceeded.
	LowPolls uint16

	// Brownout: LEDs are held off while the averaged battery is below
	// BatteryMinMilliV and the board output is below PowerOffMilliV.
	// They return once the battery is HysteresisMilliV above the minimum
	// or the board output recovers.
	BatteryMinMilliV uint16
	HysteresisMilliV uint16

	DisplayTimeoutPolls uint16
	BlinkPolls          uint16

	EnterBlink     time.Duration
	ExitBlink      time.Duration
	ExitBlinks     int
	HeartbeatPulse time.Duration

	Version string
}

func DefaultConfig() Config {
	return Config{
		PowerOffMilliV:      1500,
		LowPolls:            400,
		BatteryMinMilliV:    3300,
		HysteresisMilliV:    100,
		DisplayTimeoutPolls: 300,
		BlinkPolls:          5,
		EnterBlink:          250 * time.Millisecond,
		ExitBlink:           50 * time.Millisecond,
		ExitBlinks:          10,
		HeartbeatPulse:      10 * time.Millisecond,
		Version:             "1.0",
	}
}

func (c Config) Validate() error {
	if c.LowPolls == 0 {
		return ErrLowPolls
	}
	if c.PowerOffMilliV == 0 {
		return ErrThreshold
	}
	if c.BlinkPolls == 0 {
		return ErrBlinkPolls
	}
	return nil
}

// Link is the transport stopped in low power.
type Link interface {
	Enable()
	Disable()
}

// Clock is the tick source view the manager needs.
type Clock interface {
	RequestLow(low bool)
	WaitApplied(d hal.Delay)
	Heartbeat() bool
	ResetHeartbeat()
}

// Events receives diagnostic lines and mode changes.
type Events interface {
	Line(s string)
	ModeChanged(m Mode)
}

type Manager struct {
	cfg   Config
	link  Link
	clk   Clock
	leds  *led.Panel
	delay hal.Delay
	ev    Events

	mode     Mode
	det      Detector
	disp     Display
	brownout bool
	changes  uint32
}

func New(link Link, clk Clock, leds *led.Panel, delay hal.Delay, ev Events, cfg Config) *Manager {
	return &Manager{
		cfg:   cfg,
		link:  link,
		clk:   clk,
		leds:  leds,
		delay: delay,
		ev:    ev,
		det:   NewDetector(cfg.PowerOffMilliV, cfg.LowPolls),
		disp:  NewDisplay(cfg.DisplayTimeoutPolls, cfg.BlinkPolls),
	}
}

// Update feeds one board output reading and performs a transition when
// the decision changes. It reports whether the mode changed.
func (m *Manager) Update(voutMilliV uint16, diagRequest bool) bool {
	m.det.Update(voutMilliV)
	want := Active
	if m.det.Sustained() && !diagRequest {
		want = LowPower
	}
	if want == m.mode {
		return false
	}
	if want == LowPower {
		m.enterLow()
	} else {
		m.exitLow()
	}
	m.mode = want
	m.disp.Reset()
	m.changes++
	m.ev.ModeChanged(want)
	return true
}

func (m *Manager) enterLow() {
	m.leds.Red(true)
	m.delay.Sleep(m.cfg.EnterBlink)
	m.leds.Red(false)
	m.delay.Sleep(m.cfg.EnterBlink)
	m.leds.Red(true)
	m.delay.Sleep(m.cfg.EnterBlink)

	m.ev.Line("Entering low power mode")
	m.link.Disable()
	m.leds.SetOutput(hal.PinAttention, false)
	m.leds.Green(false)
	m.leds.Red(false)

	m.clk.RequestLow(true)
	m.clk.WaitApplied(m.delay)
	m.clk.ResetHeartbeat()
}

func (m *Manager) exitLow() {
	m.clk.RequestLow(false)
	m.clk.WaitApplied(m.delay)

	for i := 0; i < m.cfg.ExitBlinks; i++ {
		m.leds.Red(false)
		m.delay.Sleep(m.cfg.ExitBlink)
		m.leds.Red(true)
		m.delay.Sleep(m.cfg.ExitBlink)
	}

	m.ev.Line("")
	m.ev.Line("##############################")
	m.ev.Line("Active mode " + m.cfg.Version)
	m.link.Enable()
	m.leds.SetOutput(hal.PinAttention, true)
	m.leds.Set(hal.PinAttention, true)
	m.leds.Red(false)
}

// Brownout updates the LED inhibit from the latest readings. A zero
// battery average means no sample yet and never inhibits.
func (m *Manager) Brownout(batteryMilliV, voutMilliV uint16) {
	voutLow := voutMilliV < m.cfg.PowerOffMilliV
	switch {
	case batteryMilliV == 0:
		m.brownout = false
	case !m.brownout:
		m.brownout = batteryMilliV < m.cfg.BatteryMinMilliV && voutLow
	default:
		recovered := uint32(batteryMilliV) >= uint32(m.cfg.BatteryMinMilliV)+uint32(m.cfg.HysteresisMilliV)
		m.brownout = !recovered && voutLow
	}
	m.leds.Inhibit(m.brownout)
}

// LowPowerTask runs once per low-power poll.
func (m *Manager) LowPowerTask(raw hal.Levels, presses buttons.Mask) {
	m.disp.Press(presses)
	m.leds.Green(m.disp.Step())
	m.leds.Red(!raw[hal.BtnShutter] && m.disp.State() == DisplayOff)

	if m.clk.Heartbeat() {
		m.leds.Red(true)
		m.delay.Sleep(m.cfg.HeartbeatPulse)
		m.leds.Red(false)
	}
}

func (m *Manager) Mode() Mode            { return m.mode }
func (m *Manager) Display() DisplayState { return m.disp.State() }
func (m *Manager) LowCount() uint16      { return m.det.Count() }
func (m *Manager) InBrownout() bool      { return m.brownout }
func (m *Manager) Transitions() uint32   { return m.changes }
