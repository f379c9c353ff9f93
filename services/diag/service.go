// Package diag carries the firmware's diagnostic output: a bus
// publisher on the firmware side, a writer service that prints it as
// ASCII lines, and a monitor that parses those lines back on a host.
package diag

import (
	"context"
	"io"

	"auxcam-go/bus"
	"auxcam-go/types"
)

var topicConfig = bus.T("config", "diag")

// Service prints reports and log lines to w and answers status requests.
type Service struct {
	w   io.Writer
	cfg types.DiagConfig

	buf    []byte
	status types.DiagStatus
}

func NewService(w io.Writer) *Service {
	return &Service{
		w:   w,
		cfg: types.DiagConfig{Reports: true, Lines: true},
		buf: make([]byte, 0, 128),
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, ready chan<- struct{}) {
	reportSub := conn.Subscribe(TopicReport)
	defer conn.Unsubscribe(reportSub)
	lineSub := conn.Subscribe(TopicLine)
	defer conn.Unsubscribe(lineSub)
	modeSub := conn.Subscribe(TopicMode)
	defer conn.Unsubscribe(modeSub)
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)
	statusSub := conn.Subscribe(TopicStatus)
	defer conn.Unsubscribe(statusSub)
	close(ready)

	for {
		// Apply pending config before printing anything else.
		select {
		case msg := <-cfgSub.Channel():
			s.applyConfig(msg)
		default:
		}

		select {
		case <-ctx.Done():
			println("Info: diag service stopping")
			return
		case msg := <-reportSub.Channel():
			if r, ok := msg.Payload.(types.DiagReport); ok {
				s.handleReport(r)
			}
		case msg := <-lineSub.Channel():
			if l, ok := msg.Payload.(types.LogLine); ok {
				s.handleLine(l)
			}
		case msg := <-modeSub.Channel():
			if ev, ok := msg.Payload.(types.PowerEvent); ok {
				s.status.Mode = ev.Mode
			}
		case msg := <-cfgSub.Channel():
			s.applyConfig(msg)
		case msg := <-statusSub.Channel():
			conn.Reply(msg, s.status, false)
		}
	}
}

func (s *Service) applyConfig(msg *bus.Message) {
	if msg == nil {
		return
	}
	if c, ok := msg.Payload.(types.DiagConfig); ok {
		s.cfg = c
	}
}

func (s *Service) handleReport(r types.DiagReport) {
	s.status.Reports++
	s.status.Last = r
	if !s.cfg.Reports {
		return
	}
	s.buf = Format(s.buf[:0], r)
	s.buf = append(s.buf, '\n')
	s.write()
}

func (s *Service) handleLine(l types.LogLine) {
	s.status.Lines++
	if !s.cfg.Lines {
		return
	}
	s.buf = append(s.buf[:0], l.Text...)
	s.buf = append(s.buf, '\n')
	s.write()
}

func (s *Service) write() {
	if _, err := s.w.Write(s.buf); err != nil {
		s.status.WriteErrors++
	}
}

// Start launches the service loop and returns once it is subscribed.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	ready := make(chan struct{})
	go s.serviceLoop(ctx, conn, ready)
	<-ready
	return nil
}
