package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auxcam-go/errcode"
	"auxcam-go/firmware/power"
	"auxcam-go/services/config"
)

func newTestSim(t *testing.T) *Sim {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := config.Default()
	cfg.Host.SyncTimeout = 100 * time.Millisecond
	cfg.Host.RetryDelay = time.Millisecond
	s, err := NewSim(ctx, cfg, io.Discard)
	require.NoError(t, err)
	return s
}

func TestSim_TransferReadsTelemetry(t *testing.T) {
	s := newTestSim(t)
	s.Run(3)

	f, err := s.Transfer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(4316), f.BatteryMV)
	assert.True(t, s.Status().Synced)

	require.NoError(t, s.Press("Top"))
	s.Run(3)
	require.NoError(t, s.Release("top"))
	s.Run(2)

	f, err = s.Transfer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.Top)
	assert.Equal(t, time.Duration(f.Ticks)*config.Default().Sim.TimerPeriod, s.Uptime())
}

func TestSim_UnknownButton(t *testing.T) {
	s := newTestSim(t)
	err := s.Press("zoom")
	require.Error(t, err)
	assert.Equal(t, errcode.UnknownButton, errcode.Of(err))
}

func TestSim_LowPowerStopsTheLink(t *testing.T) {
	s := newTestSim(t)
	s.SetBoardVout(1000)
	s.Run(401)
	assert.Equal(t, power.LowPower, s.Status().Mode)

	_, err := s.Transfer(context.Background())
	require.Error(t, err)
	assert.Equal(t, errcode.NotSynced, errcode.Of(err))

	s.SetBoardVout(3300)
	s.Run(4)
	require.Equal(t, power.Active, s.Status().Mode)
	_, err = s.Transfer(context.Background())
	assert.NoError(t, err)
}

func TestSim_RunForAdvancesBoardTime(t *testing.T) {
	s := newTestSim(t)
	start := s.Status().Now
	n := s.RunFor(time.Second)
	assert.Equal(t, 40, n)
	assert.GreaterOrEqual(t, s.Status().Now-start, time.Second)
	assert.Equal(t, uint32(40), s.Status().Polls)
}
