// Package firmware ties the controller components to a board: one
// interrupt entry point and the polled main loop.
//
// Interrupt sources are serviced in fixed order (serial, timer, ADC).
// Everything else runs from Step, which the board calls forever.
package firmware

import (
	"context"

	"auxcam-go/firmware/analog"
	"auxcam-go/firmware/buttons"
	"auxcam-go/firmware/led"
	"auxcam-go/firmware/link"
	"auxcam-go/firmware/power"
	"auxcam-go/firmware/telemetry"
	"auxcam-go/firmware/tick"
	"auxcam-go/hal"
	"auxcam-go/x/mathx"
)

// Report is the state printed once per active poll while a diagnostic
// reader is attached.
type Report struct {
	BatteryLast    uint16
	BatteryAverage uint16
	BoardVout      uint16
	Presses        [hal.NumButtons]byte
	Buttons        hal.Levels
	Display        power.DisplayState
	Mode           power.Mode
	Ticks          uint32
	Errors         link.ErrorFlags
}

// Reporter receives everything the firmware wants to say.
type Reporter interface {
	power.Events
	Report(r Report)
}

type nopReporter struct{}

func (nopReporter) Line(string)            {}
func (nopReporter) ModeChanged(power.Mode) {}
func (nopReporter) Report(Report)          {}

type App struct {
	b   hal.Board
	cfg Config
	rep Reporter

	blk   *telemetry.Block
	leds  *led.Panel
	link  *link.Slave
	adc   *analog.Engine
	ticks *tick.Source
	pwr   *power.Manager
	btn   buttons.Debouncer

	lastFrames uint32
	idle       uint8
	polls      uint32
}

// New wires the components to b. A nil reporter discards output.
func New(b hal.Board, cfg Config, rep Reporter) *App {
	if rep == nil {
		rep = nopReporter{}
	}
	a := &App{b: b, cfg: cfg, rep: rep}
	a.blk = telemetry.New(telemetry.SerialGuard{IRQ: b})
	a.leds = led.New(b)
	a.link = link.New(b.SSP(), b, a.blk, a.leds, cfg.Link)
	a.adc = analog.New(b.ADC(), a.blk, cfg.Analog)
	a.ticks = tick.New(b, a.blk, cfg.Tick)
	a.pwr = power.New(a.link, a.ticks, a.leds, b, rep, cfg.Power)
	return a
}

// Boot brings the board from reset to the first poll.
func (a *App) Boot() {
	a.b.Attach(a.Interrupt)
	a.blk.Reset()
	a.btn.Reset()

	a.link.Enable()
	a.leds.SetOutput(hal.PinLEDRed, true)
	a.leds.SetOutput(hal.PinLEDGreen, true)
	a.leds.SetOutput(hal.PinAttention, true)
	a.leds.Set(hal.PinAttention, true)

	a.leds.Green(true)
	a.leds.Red(true)
	a.b.Sleep(a.cfg.BootBlink)
	a.leds.Green(false)
	a.leds.Red(false)
	a.b.Sleep(a.cfg.BootBlink)

	a.adc.Start()
}

// Interrupt is the single interrupt entry point.
func (a *App) Interrupt() {
	if a.take(hal.SrcSerial) {
		a.link.Service()
	}
	if a.take(hal.SrcTimer) {
		a.ticks.OnOverflow()
	}
	if a.take(hal.SrcADC) {
		a.adc.OnConversion()
	}
}

func (a *App) take(s hal.Source) bool {
	if !a.b.Enabled(s) || !a.b.Pending(s) {
		return false
	}
	a.b.Clear(s)
	return true
}

// Step runs one main loop iteration including its pacing delay.
func (a *App) Step() {
	r := a.adc.Reading()
	diag := a.b.DiagRequest()

	if a.pwr.Update(r.BoardVout, diag) && a.pwr.Mode() == power.Active {
		a.idle = 0
		a.lastFrames = a.link.Stats().Frames
	}
	a.pwr.Brownout(r.BatteryAverage, r.BoardVout)

	raw := a.b.Buttons()
	presses := a.btn.Poll(raw)
	if a.pwr.Mode() == power.LowPower {
		a.pwr.LowPowerTask(raw, presses)
	} else {
		a.activeTask(raw, presses, diag)
	}

	a.adc.Poll()
	a.polls++

	if a.pwr.Mode() == power.LowPower {
		a.b.Sleep(a.cfg.LowLoopPeriod)
	} else {
		a.b.Sleep(a.cfg.LoopPeriod)
	}
}

func (a *App) activeTask(raw hal.Levels, presses buttons.Mask, diag bool) {
	// Red follows the reader so stale link errors clear once it detaches.
	a.leds.Red(diag)

	buttons.Record(a.blk, presses)
	pending := a.blk.PendingPresses()
	a.leds.Set(hal.PinAttention, pending == 0)

	frames := a.link.Stats().Frames
	if frames == a.lastFrames {
		a.idle = mathx.SatInc(a.idle, 0xFF)
	} else {
		a.idle = 0
	}
	a.lastFrames = frames
	if a.idle > a.cfg.IdlePolls {
		a.leds.Green(false)
	}

	if diag {
		a.rep.Report(a.report(raw))
	}
}

func (a *App) report(raw hal.Levels) Report {
	r := a.adc.Reading()
	rep := Report{
		BatteryLast:    r.BatteryLast,
		BatteryAverage: r.BatteryAverage,
		BoardVout:      r.BoardVout,
		Buttons:        raw,
		Display:        a.pwr.Display(),
		Mode:           a.pwr.Mode(),
		Ticks:          a.blk.Ticks(),
		Errors:         a.link.Errors(),
	}
	for b := hal.Button(0); b < hal.NumButtons; b++ {
		rep.Presses[b] = a.blk.Presses(b)
	}
	return rep
}

// Run steps the main loop until ctx is done.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		a.Step()
	}
}

// ---------------- Accessors ----------------

func (a *App) Telemetry() *telemetry.Block { return a.blk }
func (a *App) Link() *link.Slave           { return a.link }
func (a *App) Analog() *analog.Engine      { return a.adc }
func (a *App) Ticks() *tick.Source         { return a.ticks }
func (a *App) Power() *power.Manager       { return a.pwr }
func (a *App) LEDs() *led.Panel            { return a.leds }
func (a *App) Polls() uint32               { return a.polls }
func (a *App) Config() Config              { return a.cfg }
