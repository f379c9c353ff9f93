package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"auxcam-go/bus"
	"auxcam-go/drivers/auxctl"
	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/firmware/link"
	"auxcam-go/firmware/power"
	"auxcam-go/hal"
	"auxcam-go/hal/sim"
	"auxcam-go/services/config"
	"auxcam-go/services/diag"
	"auxcam-go/types"
)

// Sim couples a simulated controller board to a host-side link driver.
// Only the shell goroutine touches the board.
type Sim struct {
	cfg   *config.Config
	board *sim.Board
	app   *firmware.App
	host  *auxctl.Device
	bus   *bus.Bus
}

// Status is a snapshot for the status command.
type Status struct {
	Now       time.Duration
	Polls     uint32
	Mode      power.Mode
	LowCount  uint16
	Display   power.DisplayState
	Brownout  bool
	Ticks     uint32
	Errors    link.ErrorFlags
	Link      link.Stats
	HostStats auxctl.Stats
	Synced    bool
}

func (s Status) String() string {
	return fmt.Sprintf("t=%v polls=%d mode=%v low=%d display=%v brownout=%t ticks=%d err=%v frames=%d/%d host=%d/%d synced=%t",
		s.Now, s.Polls, s.Mode, s.LowCount, s.Display, s.Brownout, s.Ticks, s.Errors,
		s.Link.Completed, s.Link.Frames, s.HostStats.Transfers-s.HostStats.Failures, s.HostStats.Transfers, s.Synced)
}

// NewSim boots the firmware and starts the config and diag services.
// Diagnostic output goes to out.
func NewSim(ctx context.Context, cfg *config.Config, out io.Writer) (*Sim, error) {
	fw := cfg.ToFirmware()
	if err := fw.Validate(); err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "sim", err)
	}
	b := bus.NewBus(16)

	config.NewService(cfg).Start(ctx, b.NewConnection("config"))
	if err := diag.NewService(out).Start(ctx, b.NewConnection("diag")); err != nil {
		return nil, err
	}

	board := sim.New(sim.Config{
		TimerPeriod:     cfg.Sim.TimerPeriod,
		SlowFactor:      int(cfg.Firmware.LowClockRatio),
		ReferenceMilliV: cfg.Sim.ReferenceMV,
		SupplyMilliV:    cfg.Sim.SupplyMV,
		BoardVoutMilliV: cfg.Sim.BoardVoutMV,
	})
	app := firmware.New(board, fw, diag.NewPublisher(b.NewConnection("firmware")))
	app.Boot()

	m := board.Master()
	host := auxctl.New(m, m, auxctl.Config{
		TickPeriod: cfg.Sim.TimerPeriod,
		RetryDelay: cfg.Host.RetryDelay,
	})
	return &Sim{cfg: cfg, board: board, app: app, host: host, bus: b}, nil
}

func parseButton(name string) (hal.Button, error) {
	for b := hal.Button(0); b < hal.NumButtons; b++ {
		if strings.EqualFold(name, b.String()) {
			return b, nil
		}
	}
	return 0, errcode.New(errcode.UnknownButton, "button", name)
}

func (s *Sim) Press(name string) error {
	b, err := parseButton(name)
	if err != nil {
		return err
	}
	s.board.Press(b)
	return nil
}

func (s *Sim) Release(name string) error {
	b, err := parseButton(name)
	if err != nil {
		return err
	}
	s.board.Release(b)
	return nil
}

func (s *Sim) SetSupply(mv int)    { s.board.SetSupply(mv) }
func (s *Sim) SetBoardVout(mv int) { s.board.SetBoardVout(mv) }
func (s *Sim) SetDiag(on bool)     { s.board.SetDiagRequest(on) }

// Run executes n main loop iterations.
func (s *Sim) Run(n int) {
	for i := 0; i < n; i++ {
		s.app.Step()
	}
}

// RunFor steps until at least d of board time has passed.
func (s *Sim) RunFor(d time.Duration) int {
	end := s.board.Now() + d
	n := 0
	for s.board.Now() < end {
		s.app.Step()
		n++
	}
	return n
}

// Transfer runs one host transfer, syncing first when needed.
func (s *Sim) Transfer(ctx context.Context) (types.Frame, error) {
	if !s.host.Synced() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Host.SyncTimeout)
		defer cancel()
		if err := s.host.Initialize(ctx); err != nil {
			return types.Frame{}, err
		}
		return s.host.Frame(), nil
	}
	err := s.host.Transfer()
	return s.host.Frame(), err
}

func (s *Sim) Status() Status {
	pwr := s.app.Power()
	return Status{
		Now:       s.board.Now(),
		Polls:     s.app.Polls(),
		Mode:      pwr.Mode(),
		LowCount:  pwr.LowCount(),
		Display:   pwr.Display(),
		Brownout:  pwr.InBrownout(),
		Ticks:     s.app.Telemetry().Ticks(),
		Errors:    s.app.Link().Errors(),
		Link:      s.app.Link().Stats(),
		HostStats: s.host.Stats(),
		Synced:    s.host.Synced(),
	}
}

// Uptime is the controller's uptime as the host computes it.
func (s *Sim) Uptime() time.Duration { return s.host.Time() }

func (s *Sim) Bus() *bus.Bus { return s.bus }
