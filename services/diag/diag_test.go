package diag

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auxcam-go/bus"
	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/firmware/link"
	"auxcam-go/firmware/power"
	"auxcam-go/hal"
	"auxcam-go/hal/sim"
	"auxcam-go/types"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("uart gone") }

var sample = types.DiagReport{
	BatteryMV:   4016,
	AverageMV:   4316,
	BoardVoutMV: 3309,
	Top:         1,
	Buttons:     [4]bool{true, false, true, true},
	Display:     "off",
	Ticks:       42,
	Errors:      []string{"none", "sequence"},
}

func TestFormat(t *testing.T) {
	got := string(Format(nil, sample))
	assert.Equal(t, "batt 4016 avg 4316 vout 3309 shutter 0 top 1 mid 0 bot 0 btn 1011 disp off ticks 42 err none|sequence", got)
}

func TestParseLine_ReadsFormat(t *testing.T) {
	r, err := ParseLine(string(Format(nil, sample)) + "\r")
	require.NoError(t, err)
	assert.Equal(t, sample, r)
}

func TestParseLine_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"Active mode 1.0",
		"##############################",
		"batt 4016 avg",
		"batt 40x6 avg 1 vout 1 shutter 0 top 0 mid 0 bot 0 ticks 1",
		"batt 4016 avg 4316",
		"batt 1 avg 1 vout 1 shutter 0 top 0 mid 0 bot 0 btn 10 ticks 1",
	} {
		_, err := ParseLine(line)
		require.Error(t, err, "line %q", line)
		assert.Equal(t, errcode.BadLine, errcode.Of(err))
	}
}

func TestParseLine_IgnoresUnknownKeys(t *testing.T) {
	line := string(Format(nil, sample)) + " temp 21"
	r, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), r.Ticks)
}

func TestFromReport(t *testing.T) {
	r := FromReport(firmware.Report{
		BatteryLast:    4016,
		BatteryAverage: 4136,
		BoardVout:      1001,
		Presses:        [hal.NumButtons]byte{3, 0, 0, 1},
		Buttons:        hal.Levels{true, true, true, true},
		Display:        power.DisplayOn,
		Ticks:          9,
		Errors:         link.ErrNone | link.ErrOverflow,
	})
	assert.Equal(t, uint8(3), r.Shutter)
	assert.Equal(t, uint8(1), r.Bottom)
	assert.Equal(t, "on", r.Display)
	assert.Equal(t, []string{"none", "overflow"}, r.Errors)
}

func startService(t *testing.T) (*bus.Bus, *bus.Connection, *syncBuffer) {
	t.Helper()
	b := bus.NewBus(64)
	conn := b.NewConnection("diag")
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, NewService(out).Start(ctx, conn))
	return b, conn, out
}

func TestService_PrintsFirmwareOutput(t *testing.T) {
	b, _, out := startService(t)

	board := sim.New(sim.DefaultConfig())
	board.SetBoardVout(1000)
	app := firmware.New(board, firmware.DefaultConfig(), NewPublisher(b.NewConnection("fw")))
	app.Boot()

	board.SetDiagRequest(true)
	for i := 0; i < 3; i++ {
		app.Step()
	}
	board.SetDiagRequest(false)
	for i := 0; i < 400; i++ {
		app.Step()
	}
	require.Equal(t, power.LowPower, app.Power().Mode())

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 4
	}, time.Second, 5*time.Millisecond)

	var reports []types.DiagReport
	var text []string
	for _, l := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if r, err := ParseLine(l); err == nil {
			reports = append(reports, r)
		} else {
			text = append(text, l)
		}
	}
	require.Len(t, reports, 3)
	assert.Equal(t, []string{"Entering low power mode"}, text)
	assert.Contains(t, reports, types.DiagReport{
		BatteryMV:   4016,
		AverageMV:   4136,
		BoardVoutMV: 1001,
		Buttons:     [4]bool{true, true, true, true},
		Display:     "off",
		Ticks:       2,
		Errors:      []string{"none"},
	})
}

func TestService_StatusAndMode(t *testing.T) {
	b, conn, _ := startService(t)
	pub := NewPublisher(b.NewConnection("fw"))

	pub.ModeChanged(power.LowPower)
	pub.Report(firmware.Report{BatteryLast: 3900, Display: power.DisplayTimeout})
	pub.Line("hello")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var st types.DiagStatus
	require.Eventually(t, func() bool {
		reply, err := conn.RequestWait(ctx, conn.NewMessage(TopicStatus, nil, false))
		if err != nil {
			return false
		}
		st = reply.Payload.(types.DiagStatus)
		return st.Reports == 1 && st.Lines == 1 && st.Mode == "low_power"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint16(3900), st.Last.BatteryMV)
	assert.Equal(t, "timeout", st.Last.Display)
}

func TestService_CountsFailedWrites(t *testing.T) {
	b := bus.NewBus(64)
	conn := b.NewConnection("diag")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, NewService(brokenWriter{}).Start(ctx, conn))
	pub := NewPublisher(b.NewConnection("fw"))

	pub.Report(firmware.Report{BatteryLast: 3900})
	pub.Line("lost")

	var st types.DiagStatus
	require.Eventually(t, func() bool {
		reply, err := conn.RequestWait(ctx, conn.NewMessage(TopicStatus, nil, false))
		if err != nil {
			return false
		}
		st = reply.Payload.(types.DiagStatus)
		return st.Reports == 1 && st.Lines == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint32(2), st.WriteErrors)
}

func TestService_ConfigSilencesReports(t *testing.T) {
	b, conn, out := startService(t)
	pub := NewPublisher(b.NewConnection("fw"))

	conn.Publish(conn.NewMessage(topicConfig, types.DiagConfig{Reports: false, Lines: true}, true))
	pub.Line("marker")
	// Config updates are applied before the next message is handled.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "marker")
	}, time.Second, 5*time.Millisecond)

	pub.Report(firmware.Report{BatteryLast: 4000})
	pub.Line("after")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "after")
	}, time.Second, 5*time.Millisecond)
	assert.NotContains(t, out.String(), "batt")
}

func TestPublisher_ModeIsRetained(t *testing.T) {
	b := bus.NewBus(4)
	pub := NewPublisher(b.NewConnection("fw"))
	pub.now = func() time.Time { return time.UnixMilli(1234) }
	pub.ModeChanged(power.LowPower)
	pub.ModeChanged(power.Active)

	sub := b.NewConnection("late").Subscribe(TopicMode)
	select {
	case m := <-sub.Channel():
		assert.Equal(t, types.PowerEvent{Mode: "active", Transitions: 2, TS: 1234}, m.Payload)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no retained mode")
	}
}

func TestMonitor_SplitsReportsAndText(t *testing.T) {
	input := "\n##############################\nActive mode 1.0\n" +
		string(Format(nil, sample)) + "\r\n" +
		"batt garbage\n"
	m := NewMonitor(strings.NewReader(input), 8)
	require.NoError(t, m.Run(context.Background()))

	var reports []types.DiagReport
	for r := range m.Reports() {
		reports = append(reports, r)
	}
	var lines []string
	for l := range m.Lines() {
		lines = append(lines, l)
	}
	require.Len(t, reports, 1)
	assert.Equal(t, sample, reports[0])
	assert.Equal(t, []string{"##############################", "Active mode 1.0", "batt garbage"}, lines)
	assert.Zero(t, m.Dropped())
}

func TestMonitor_DropsWhenFull(t *testing.T) {
	var in strings.Builder
	for i := 0; i < 5; i++ {
		in.WriteString("text\n")
	}
	m := NewMonitor(strings.NewReader(in.String()), 2)
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint32(3), m.Dropped())
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMonitor(idleReader{}, 1)
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)
}

// idleReader behaves like a port with a read timeout and no traffic.
type idleReader struct{}

func (idleReader) Read([]byte) (int, error) { return 0, nil }
