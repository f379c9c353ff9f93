//go:build rp2040

package rp2

import (
	"device/rp"
	"time"
)

// alarm reprograms timer alarm 3 on every expiry. On the slow clock the
// period is multiplied by the slow factor.
type alarm struct {
	period uint32 // microseconds
	slow   uint32
	scale  uint32
	next   uint32
}

const alarmBit = 1 << 3

func newAlarm(cfg Config) *alarm {
	if cfg.SlowFactor == 0 {
		cfg.SlowFactor = 8
	}
	return &alarm{
		period: uint32(cfg.TimerPeriod / time.Microsecond),
		slow:   cfg.SlowFactor,
		scale:  1,
	}
}

func (a *alarm) start() {
	rp.TIMER.INTE.SetBits(alarmBit)
	a.next = rp.TIMER.TIMERAWL.Get() + a.period
	rp.TIMER.ALARM3.Set(a.next)
}

// ack clears the interrupt and arms the following expiry. It runs after
// the handler so a clock change made there applies to the next period.
func (a *alarm) ack() {
	rp.TIMER.INTR.Set(alarmBit)
	a.next += a.period * a.scale
	rp.TIMER.ALARM3.Set(a.next)
}

func (a *alarm) setSlow(low bool) {
	if low {
		a.scale = a.slow
	} else {
		a.scale = 1
	}
}
