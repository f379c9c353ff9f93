package firmware

import (
	"context"
	"testing"
	"time"

	"auxcam-go/firmware/power"
	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
	"auxcam-go/hal/sim"
)

type recorder struct {
	lines   []string
	modes   []power.Mode
	reports []Report
}

func (r *recorder) Line(s string)            { r.lines = append(r.lines, s) }
func (r *recorder) ModeChanged(m power.Mode) { r.modes = append(r.modes, m) }
func (r *recorder) Report(rep Report)        { r.reports = append(r.reports, rep) }

func boot(t *testing.T, voutMilliV int) (*sim.Board, *App, *recorder) {
	t.Helper()
	b := sim.New(sim.DefaultConfig())
	b.SetBoardVout(voutMilliV)
	rec := &recorder{}
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	a := New(b, cfg, rec)
	a.Boot()
	return b, a, rec
}

func steps(a *App, n int) {
	for i := 0; i < n; i++ {
		a.Step()
	}
}

func hostFrame(b *sim.Board, id byte) byte {
	p := b.Port()
	p.Select()
	ack := p.Exchange(id)
	for i := 0; i < telemetry.Size; i++ {
		p.Exchange(0)
	}
	p.Deselect()
	return ack
}

func TestBootSequence(t *testing.T) {
	b := sim.New(sim.DefaultConfig())
	b.Trace(true)
	a := New(b, DefaultConfig(), nil)
	a.Boot()

	if b.Pulses(hal.PinLEDRed) != 1 || b.Pulses(hal.PinLEDGreen) != 1 {
		t.Fatal("boot flash missing")
	}
	if b.Get(hal.PinLEDRed) || b.Get(hal.PinLEDGreen) {
		t.Fatal("LEDs left on after boot")
	}
	if !b.Output(hal.PinAttention) || !b.Get(hal.PinAttention) {
		t.Fatal("attention line not idle high")
	}
	if b.Port().Loaded() != 0xF0 || !a.Link().Enabled() {
		t.Fatal("link not started")
	}
	if b.Now() != 500*time.Millisecond {
		t.Fatalf("boot took %v", b.Now())
	}
	if !a.Analog().Ready() {
		t.Fatal("first acquisition not started")
	}
	if a.Ticks().Ticks() != 1 {
		t.Fatalf("ticks after boot = %d", a.Ticks().Ticks())
	}
}

func TestAnalogReachesTelemetry(t *testing.T) {
	_, a, _ := boot(t, 3300)
	steps(a, 2)
	r := a.Analog().Reading()
	if r.BatteryLast != 4016 || r.BoardVout != 3309 {
		t.Fatalf("reading %+v", r)
	}
	steps(a, 1)
	if got := a.Telemetry().Voltage(); got != 4316 {
		t.Fatalf("reported voltage = %d, want 4316", got)
	}
}

func TestSustainedLowEntersLowPower(t *testing.T) {
	b, a, rec := boot(t, 1000)
	steps(a, 400)
	if a.Power().Mode() != power.Active {
		t.Fatal("entered low power too early")
	}
	a.Step()
	if a.Power().Mode() != power.LowPower {
		t.Fatalf("mode %v after 401 low polls (count %d)", a.Power().Mode(), a.Power().LowCount())
	}
	if a.Link().Enabled() || b.Port().Driving() || b.Output(hal.PinAttention) {
		t.Fatal("link outputs not released")
	}
	if !a.Ticks().Low() || !b.LowClock() {
		t.Fatal("slow clock not applied")
	}
	if len(rec.lines) == 0 || rec.lines[0] != "Entering low power mode" {
		t.Fatalf("lines %q", rec.lines)
	}

	b.SetBoardVout(3300)
	for i := 0; i < 4 && a.Power().Mode() == power.LowPower; i++ {
		a.Step()
	}
	if a.Power().Mode() != power.Active {
		t.Fatal("did not wake on a high reading")
	}
	if !a.Link().Enabled() || a.Ticks().Low() || !b.Get(hal.PinAttention) {
		t.Fatal("active outputs not restored")
	}
	if rec.lines[len(rec.lines)-1] != "Active mode 1.0" {
		t.Fatalf("banner %q", rec.lines[len(rec.lines)-1])
	}
	if len(rec.modes) != 2 {
		t.Fatalf("modes %v", rec.modes)
	}
}

func TestHighReadingRestartsLowCount(t *testing.T) {
	b, a, _ := boot(t, 1000)
	steps(a, 350)
	b.SetBoardVout(3300)
	steps(a, 3)
	if a.Power().LowCount() != 0 {
		t.Fatalf("low count %d after a high reading", a.Power().LowCount())
	}
	b.SetBoardVout(1000)
	steps(a, 350)
	if a.Power().Mode() != power.Active {
		t.Fatal("count was not restarted")
	}
}

func TestDiagReaderHoldsActiveAndReports(t *testing.T) {
	b, a, rec := boot(t, 1000)
	b.SetDiagRequest(true)
	steps(a, 450)
	if a.Power().Mode() != power.Active {
		t.Fatal("low power entered with reader attached")
	}
	if len(rec.reports) != 450 {
		t.Fatalf("reports = %d", len(rec.reports))
	}
	last := rec.reports[len(rec.reports)-1]
	if last.BoardVout != 1001 || last.Mode != power.Active || last.Ticks == 0 {
		t.Fatalf("report %+v", last)
	}
	if !b.Get(hal.PinLEDRed) {
		t.Fatal("red should follow the request line")
	}

	b.SetDiagRequest(false)
	a.Step()
	if a.Power().Mode() != power.LowPower {
		t.Fatal("detaching the reader should allow low power")
	}
}

func TestPressesRaiseAttentionUntilReported(t *testing.T) {
	b, a, _ := boot(t, 3300)
	steps(a, 2)
	b.Press(hal.BtnShutter)
	steps(a, 3)
	b.Release(hal.BtnShutter)
	steps(a, 2)

	blk := a.Telemetry()
	if blk.Presses(hal.BtnShutter) != 1 || blk.Byte(telemetry.IdxPending) != 1 {
		t.Fatalf("presses=%d pending=%d", blk.Presses(hal.BtnShutter), blk.Byte(telemetry.IdxPending))
	}
	if b.Get(hal.PinAttention) {
		t.Fatal("attention line should be low with a pending press")
	}

	hostFrame(b, 0)
	if blk.Presses(hal.BtnShutter) != 0 || !b.Get(hal.PinAttention) {
		t.Fatal("completed transfer did not clear presses")
	}
	a.Step()
	if blk.Byte(telemetry.IdxPending) != 0 || !b.Get(hal.PinAttention) {
		t.Fatal("pending total not cleared")
	}
}

func TestActivityLEDTimesOut(t *testing.T) {
	b, a, _ := boot(t, 3300)
	if ack := hostFrame(b, 0); ack != 0xF0 {
		t.Fatalf("first ack %#x", ack)
	}
	if !b.Get(hal.PinLEDGreen) {
		t.Fatal("frame did not light green")
	}
	steps(a, 41)
	if !b.Get(hal.PinLEDGreen) {
		t.Fatal("green went off early")
	}
	a.Step()
	if b.Get(hal.PinLEDGreen) {
		t.Fatal("green still on after idle timeout")
	}
}

func TestTicksFollowWallTimeAcrossClocks(t *testing.T) {
	b, a, _ := boot(t, 1000)
	steps(a, 600)
	if a.Power().Mode() != power.LowPower {
		t.Fatal("expected low power")
	}
	period := DefaultConfig().Tick.Period
	drift := b.Now() - a.Ticks().Elapsed()
	if drift < 0 || drift > 8*period {
		t.Fatalf("elapsed %v vs board %v", a.Ticks().Elapsed(), b.Now())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	_, a, _ := boot(t, 3300)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != context.Canceled {
		t.Fatalf("run returned %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdlePolls = 0
	if cfg.Validate() != ErrIdlePolls {
		t.Fatal("zero idle polls accepted")
	}
	cfg = DefaultConfig()
	cfg.LoopPeriod = 0
	if cfg.Validate() != ErrLoopPeriod {
		t.Fatal("zero loop period accepted")
	}
	cfg = DefaultConfig()
	cfg.Power.LowPolls = 0
	if cfg.Validate() != power.ErrLowPolls {
		t.Fatal("power config not validated")
	}
}
