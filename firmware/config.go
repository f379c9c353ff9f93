package firmware

import (
	"errors"
	"time"

	"auxcam-go/firmware/analog"
	"auxcam-go/firmware/link"
	"auxcam-go/firmware/power"
	"auxcam-go/firmware/tick"
)

var (
	ErrLoopPeriod = errors.New("firmware: loop period must be positive")
	ErrIdlePolls  = errors.New("firmware: idle polls must be positive")
)

// Config gathers the settings of every firmware component.
type Config struct {
	Link   link.Config
	Analog analog.Config
	Tick   tick.Config
	Power  power.Config

	// LoopPeriod paces the active main loop.
	LoopPeriod time.Duration
	// LowLoopPeriod paces the loop on the slow clock.
	LowLoopPeriod time.Duration
	// IdlePolls is how many active polls without a new frame turn the
	// activity LED off.
	IdlePolls uint8
	// BootBlink is the on and off time of the power-up LED flash.
	BootBlink time.Duration
}

func DefaultConfig() Config {
	return Config{
		Link:          link.DefaultConfig(),
		Analog:        analog.DefaultConfig(),
		Tick:          tick.DefaultConfig(),
		Power:         power.DefaultConfig(),
		LoopPeriod:    25 * time.Millisecond,
		LowLoopPeriod: 200 * time.Millisecond,
		IdlePolls:     40,
		BootBlink:     250 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if err := c.Analog.Validate(); err != nil {
		return err
	}
	if err := c.Tick.Validate(); err != nil {
		return err
	}
	if err := c.Power.Validate(); err != nil {
		return err
	}
	if c.LoopPeriod <= 0 || c.LowLoopPeriod <= 0 {
		return ErrLoopPeriod
	}
	if c.IdlePolls == 0 {
		return ErrIdlePolls
	}
	return nil
}
