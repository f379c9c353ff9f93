//go:build rp2040

// Command auxfw is the controller firmware image.
package main

import (
	"context"

	"auxcam-go/bus"
	"auxcam-go/firmware"
	"auxcam-go/platform/rp2"
	"auxcam-go/services/diag"
)

const diagBaud = 9600

func main() {
	ctx := context.Background()

	cfg := firmware.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		println("Error: firmware config:", err.Error())
		return
	}

	b := bus.NewBus(4)
	svc := diag.NewService(rp2.DiagUART(diagBaud))
	if err := svc.Start(ctx, b.NewConnection("diag")); err != nil {
		println("Error: diag service:", err.Error())
		return
	}

	board := rp2.New(rp2.DefaultConfig())
	app := firmware.New(board, cfg, diag.NewPublisher(b.NewConnection("firmware")))
	app.Boot()
	println("Info: auxfw running", cfg.Power.Version)

	_ = app.Run(ctx)
}
