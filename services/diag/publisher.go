package diag

import (
	"time"

	"auxcam-go/bus"
	"auxcam-go/firmware"
	"auxcam-go/firmware/power"
	"auxcam-go/types"
)

var (
	TopicReport = bus.T("diag", "report")
	TopicLine   = bus.T("diag", "line")
	TopicStatus = bus.T("diag", "status", "get")
	TopicMode   = bus.T("power", "mode")
)

// Publisher is the firmware reporter that forwards everything to the bus.
// Publishing never blocks, so it is safe to call from the main loop.
type Publisher struct {
	conn        *bus.Connection
	now         func() time.Time
	transitions uint32
}

func NewPublisher(conn *bus.Connection) *Publisher {
	return &Publisher{conn: conn, now: time.Now}
}

func (p *Publisher) Line(s string) {
	p.conn.Publish(p.conn.NewMessage(TopicLine, types.LogLine{Text: s}, false))
}

func (p *Publisher) ModeChanged(m power.Mode) {
	p.transitions++
	ev := types.PowerEvent{
		Mode:        m.String(),
		Transitions: p.transitions,
		TS:          p.now().UnixMilli(),
	}
	p.conn.Publish(p.conn.NewMessage(TopicMode, ev, true))
}

func (p *Publisher) Report(r firmware.Report) {
	p.conn.Publish(p.conn.NewMessage(TopicReport, FromReport(r), false))
}

var _ firmware.Reporter = (*Publisher)(nil)
