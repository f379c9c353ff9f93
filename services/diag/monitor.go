package diag

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"

	"auxcam-go/types"
)

// Monitor reads diagnostic lines from a port and sorts them into parsed
// reports and free text (mode banners and the like).
type Monitor struct {
	r       io.Reader
	reports chan types.DiagReport
	lines   chan string
	dropped atomic.Uint32
}

func NewMonitor(r io.Reader, bufSize int) *Monitor {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Monitor{
		r:       r,
		reports: make(chan types.DiagReport, bufSize),
		lines:   make(chan string, bufSize),
	}
}

func (m *Monitor) Reports() <-chan types.DiagReport { return m.reports }
func (m *Monitor) Lines() <-chan string             { return m.lines }

// Dropped counts lines discarded because a channel was full.
func (m *Monitor) Dropped() uint32 { return m.dropped.Load() }

// Run reads until EOF, a read error or ctx is done. It closes both
// channels on return. EOF is not an error.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.reports)
	defer close(m.lines)

	scanner := bufio.NewScanner(ctxReader{ctx: ctx, r: m.r})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if r, err := ParseLine(line); err == nil {
			select {
			case m.reports <- r:
			default:
				m.dropped.Add(1)
			}
			continue
		}
		select {
		case m.lines <- line:
		default:
			m.dropped.Add(1)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return ctx.Err()
}

// ctxReader retries empty reads, which a port with a read timeout
// returns when idle, until data arrives or ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	for {
		if err := c.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := c.r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}
