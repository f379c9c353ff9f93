package config

import (
	"context"

	"auxcam-go/bus"
	"auxcam-go/errcode"
	"auxcam-go/types"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

const configPrefix = "config"

var (
	TopicFirmware = bus.T(configPrefix, "firmware")
	TopicSim      = bus.T(configPrefix, "sim")
	TopicMonitor  = bus.T(configPrefix, "monitor")
	TopicHost     = bus.T(configPrefix, "host")
	TopicDiag     = bus.T(configPrefix, "diag")
	TopicDiagSet  = bus.T(configPrefix, "diag", "set")
)

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

// Service publishes each section retained under config/<section> and
// accepts updates to the diag section on config/diag/set.
type Service struct {
	cfg *Config
}

func NewService(cfg *Config) *Service {
	if cfg == nil {
		cfg = Default()
	}
	return &Service{cfg: cfg}
}

// Publish sends every section as a retained message.
func (s *Service) Publish(conn *bus.Connection) {
	conn.Publish(conn.NewMessage(TopicFirmware, s.cfg.ToFirmware(), true))
	conn.Publish(conn.NewMessage(TopicSim, s.cfg.Sim, true))
	conn.Publish(conn.NewMessage(TopicMonitor, s.cfg.Monitor, true))
	conn.Publish(conn.NewMessage(TopicHost, s.cfg.Host, true))
	conn.Publish(conn.NewMessage(TopicDiag, s.cfg.Diag, true))
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	setSub := conn.Subscribe(TopicDiagSet)
	defer conn.Unsubscribe(setSub)

	s.Publish(conn)

	for {
		select {
		case <-ctx.Done():
			println("Info: config service stopping")
			return
		case msg, ok := <-setSub.Channel():
			if !ok {
				return
			}
			d, ok := msg.Payload.(types.DiagConfig)
			if !ok {
				conn.Reply(msg, errcode.InvalidPayload, false)
				continue
			}
			s.cfg.Diag = d
			conn.Publish(conn.NewMessage(TopicDiag, d, true))
			conn.Reply(msg, errcode.OK, false)
		}
	}
}

// Start launches the publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}
