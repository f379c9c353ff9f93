package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auxcam-go/bus"
	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 25*time.Millisecond, cfg.Firmware.LoopPeriod)
	assert.Equal(t, uint16(400), cfg.Firmware.LowPolls)
	assert.Equal(t, uint16(1500), cfg.Firmware.PowerOffMV)
	assert.Equal(t, uint16(4500), cfg.Firmware.CeilingMV)
	assert.Equal(t, uint32(585), cfg.Firmware.ReferenceMV)
	assert.Equal(t, uint8(2), cfg.Firmware.Settle)
	assert.Equal(t, uint16(38), cfg.Firmware.Heartbeat)
	assert.Equal(t, 9600, cfg.Monitor.Baud)
	require.NoError(t, cfg.Validate())
}

func TestDefaultRoundTripsToFirmware(t *testing.T) {
	assert.Equal(t, firmware.DefaultConfig(), Default().ToFirmware())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.yaml")
	yamlContent := `
firmware:
  low_polls: 80
  version: "1.1"
sim:
  board_vout_mv: 1000
monitor:
  port: /dev/ttyACM0
diag:
  reports: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(80), cfg.Firmware.LowPolls)
	assert.Equal(t, "1.1", cfg.Firmware.Version)
	assert.Equal(t, 1000, cfg.Sim.BoardVoutMV)
	assert.Equal(t, "/dev/ttyACM0", cfg.Monitor.Port)
	assert.False(t, cfg.Diag.Reports)
	assert.True(t, cfg.Diag.Lines)

	// Untouched fields keep their defaults.
	assert.Equal(t, 25*time.Millisecond, cfg.Firmware.LoopPeriod)
	assert.Equal(t, 4000, cfg.Sim.SupplyMV)

	fw := cfg.ToFirmware()
	assert.Equal(t, uint16(80), fw.Power.LowPolls)
	assert.Equal(t, "1.1", fw.Power.Version)
}

func TestLoad_ZeroesFilledFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("firmware:\n  settle: 0\n  low_polls: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), cfg.Firmware.Settle)
	assert.Equal(t, uint16(400), cfg.Firmware.LowPolls)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("firmware: [oops"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))
}

func TestLoad_RejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("firmware:\n  reference_mv: 9000\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.InvalidConfig))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aux.yaml")
	cfg := Default()
	cfg.Monitor.Port = "/dev/ttyS3"
	cfg.Firmware.HysteresisMV = 150

	require.NoError(t, cfg.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestService_PublishesRetainedSections(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewService(Default()).Start(ctx, conn)

	sub := conn.Subscribe(TopicFirmware)
	select {
	case m := <-sub.Channel():
		fw, ok := m.Payload.(firmware.Config)
		require.True(t, ok, "payload %T", m.Payload)
		assert.Equal(t, firmware.DefaultConfig(), fw)
		assert.True(t, m.Retained)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no retained firmware section")
	}
}

func TestService_DiagSet(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	cfg := Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewService(cfg).Start(ctx, conn)

	// Wait for the service to be listening.
	diagSub := conn.Subscribe(TopicDiag)
	select {
	case <-diagSub.Channel():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("service did not start")
	}

	rctx, rcancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer rcancel()
	reply, err := conn.RequestWait(rctx, conn.NewMessage(TopicDiagSet, types.DiagConfig{Reports: false, Lines: true}, false))
	require.NoError(t, err)
	assert.Equal(t, errcode.OK, reply.Payload)

	select {
	case m := <-diagSub.Channel():
		assert.Equal(t, types.DiagConfig{Reports: false, Lines: true}, m.Payload)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("updated diag section not published")
	}

	reply, err = conn.RequestWait(rctx, conn.NewMessage(TopicDiagSet, "nope", false))
	require.NoError(t, err)
	assert.Equal(t, errcode.InvalidPayload, reply.Payload)
}
