package auxctl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/hal"
	"auxcam-go/hal/sim"
)

func newController(t *testing.T) (*sim.Board, *firmware.App, *Device) {
	t.Helper()
	b := sim.New(sim.DefaultConfig())
	a := firmware.New(b, firmware.DefaultConfig(), nil)
	a.Boot()
	m := b.Master()
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return b, a, New(m, m, cfg)
}

func TestInitializeRestartsSequence(t *testing.T) {
	_, _, d := newController(t)
	require.NoError(t, d.Initialize(context.Background()))

	assert.True(t, d.Synced())
	assert.Equal(t, byte(1), d.Sequence())
	assert.Equal(t, byte(1), d.Ack())
	st := d.Stats()
	assert.Equal(t, uint32(2), st.Transfers)
	assert.Equal(t, uint32(1), st.Restarts)
	assert.Zero(t, st.Failures)
}

func TestTransferDecodesTelemetry(t *testing.T) {
	b, a, d := newController(t)
	for i := 0; i < 3; i++ {
		a.Step()
	}
	require.NoError(t, d.Initialize(context.Background()))

	b.Press(hal.BtnTop)
	for i := 0; i < 3; i++ {
		a.Step()
	}
	b.Release(hal.BtnTop)
	for i := 0; i < 2; i++ {
		a.Step()
	}

	require.NoError(t, d.Transfer())
	f := d.Frame()
	assert.Equal(t, uint8(1), f.Top)
	assert.Equal(t, uint8(1), f.Pending)
	assert.True(t, f.Presses())
	assert.Equal(t, uint16(4316), f.BatteryMV)
	assert.True(t, f.Errors.Clean())
	assert.NotZero(t, f.Ticks)
	assert.Equal(t, time.Duration(f.Ticks)*DefaultConfig().TickPeriod, d.Time())

	require.NoError(t, d.Transfer())
	assert.Zero(t, d.Frame().Top, "counters clear after a completed transfer")
}

func TestMismatchForcesRestart(t *testing.T) {
	b, _, d := newController(t)
	require.NoError(t, d.Initialize(context.Background()))

	// Another master skips the sequence ahead.
	p := b.Port()
	p.Select()
	p.Exchange(77)
	p.Deselect()

	err := d.Transfer()
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.SequenceMismatch))
	assert.False(t, d.Synced())
	assert.Equal(t, uint32(1), d.Stats().Mismatches)

	require.NoError(t, d.Sync(context.Background()))
	assert.True(t, d.Synced())
	assert.True(t, d.Frame().Errors.Clean())
	assert.Equal(t, uint32(2), d.Stats().Restarts)
}

func TestSyncGivesUpWhenLinkIsDown(t *testing.T) {
	_, a, d := newController(t)
	a.Link().Disable()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Initialize(ctx)
	require.Error(t, err)
	assert.Equal(t, errcode.NotSynced, errcode.Of(err))
	assert.NotZero(t, d.Stats().Failures)
}

func TestSequenceWrapsBefore254(t *testing.T) {
	_, _, d := newController(t)
	require.NoError(t, d.Initialize(context.Background()))

	for d.Sequence() < 253 {
		require.NoError(t, d.Transfer(), "id %d", d.Sequence()+1)
	}
	require.NoError(t, d.Transfer())
	assert.Equal(t, byte(0), d.Sequence())
	require.NoError(t, d.Transfer())
	assert.Equal(t, byte(1), d.Sequence())
	assert.Equal(t, uint32(1), d.Stats().Restarts)
}

func TestCommandsReachController(t *testing.T) {
	_, a, d := newController(t)
	require.NoError(t, d.SetCommand(3, 0xAB))
	require.NoError(t, d.SetCommand(19, 0x5A))
	assert.ErrorIs(t, d.SetCommand(20, 1), ErrCommandIndex)
	assert.ErrorIs(t, d.SetCommand(-1, 1), ErrCommandIndex)

	require.NoError(t, d.Initialize(context.Background()))
	cmd := a.Telemetry().Commands()
	assert.Equal(t, byte(0xAB), cmd[3])
	assert.Equal(t, byte(0x5A), cmd[19])
}
