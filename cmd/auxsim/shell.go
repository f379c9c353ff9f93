package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"auxcam-go/errcode"
	"auxcam-go/services/config"
	"auxcam-go/types"
)

const simKey = "$sim"

var commands = []*ishell.Cmd{
	&PressCmd,
	&ReleaseCmd,
	&SupplyCmd,
	&VoutCmd,
	&DiagCmd,
	&RunCmd,
	&TransferCmd,
	&StatusCmd,
	&ReportsCmd,
}

func newShell(s *Sim) *ishell.Shell {
	sh := ishell.New()
	sh.Set(simKey, s)
	sh.SetPrompt("auxsim > ")
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}
	return sh
}

func simFrom(c *ishell.Context) *Sim { return c.Get(simKey).(*Sim) }

// withArgs rejects calls with fewer than n arguments.
func withArgs(n int, fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("expected %d argument(s)", n))
			return
		}
		fn(c)
	}
}

func millivolts(c *ishell.Context) (int, bool) {
	mv, err := strconv.Atoi(strings.TrimSuffix(c.Args[0], "mV"))
	if err != nil || mv < 0 {
		c.Err(fmt.Errorf("bad millivolts %q", c.Args[0]))
		return 0, false
	}
	return mv, true
}

func formatFrame(f types.Frame) string {
	return fmt.Sprintf("shutter=%d top=%d middle=%d bottom=%d pending=%d battery=%dmV ticks=%d err=%s",
		f.Shutter, f.Top, f.Middle, f.Bottom, f.Pending, f.BatteryMV, f.Ticks, strings.Join(f.Errors.Names(), "|"))
}

var (
	PressCmd = ishell.Cmd{
		Name: "press",
		Help: "BUTTON (shutter|top|middle|bottom)",
		Func: withArgs(1, func(c *ishell.Context) {
			if err := simFrom(c).Press(c.Args[0]); err != nil {
				c.Err(err)
			}
		}),
	}

	ReleaseCmd = ishell.Cmd{
		Name: "release",
		Help: "BUTTON",
		Func: withArgs(1, func(c *ishell.Context) {
			if err := simFrom(c).Release(c.Args[0]); err != nil {
				c.Err(err)
			}
		}),
	}

	SupplyCmd = ishell.Cmd{
		Name: "supply",
		Help: "MILLIVOLTS",
		Func: withArgs(1, func(c *ishell.Context) {
			if mv, ok := millivolts(c); ok {
				simFrom(c).SetSupply(mv)
			}
		}),
	}

	VoutCmd = ishell.Cmd{
		Name: "vout",
		Help: "MILLIVOLTS",
		Func: withArgs(1, func(c *ishell.Context) {
			if mv, ok := millivolts(c); ok {
				simFrom(c).SetBoardVout(mv)
			}
		}),
	}

	DiagCmd = ishell.Cmd{
		Name: "diag",
		Help: "on|off",
		Func: withArgs(1, func(c *ishell.Context) {
			simFrom(c).SetDiag(c.Args[0] == "on")
		}),
	}

	RunCmd = ishell.Cmd{
		Name:    "run",
		Aliases: []string{"r"},
		Help:    "POLLS | DURATION",
		Func: withArgs(1, func(c *ishell.Context) {
			s := simFrom(c)
			if d, err := time.ParseDuration(c.Args[0]); err == nil {
				c.Printf("%d polls\n", s.RunFor(d))
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil || n < 0 {
				c.Err(fmt.Errorf("bad count %q", c.Args[0]))
				return
			}
			s.Run(n)
		}),
	}

	TransferCmd = ishell.Cmd{
		Name:    "transfer",
		Aliases: []string{"t"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			n := 1
			if len(c.Args) > 0 {
				if v, err := strconv.Atoi(c.Args[0]); err == nil && v > 0 {
					n = v
				}
			}
			s := simFrom(c)
			for i := 0; i < n; i++ {
				f, err := s.Transfer(context.Background())
				if err != nil {
					glog.Warningf("transfer: %v", err)
					c.Err(err)
					return
				}
				c.Println(formatFrame(f))
			}
			c.Printf("uptime %v\n", s.Uptime())
		},
	}

	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Func: func(c *ishell.Context) {
			c.Println(simFrom(c).Status().String())
		},
	}

	ReportsCmd = ishell.Cmd{
		Name: "reports",
		Help: "on|off",
		Func: withArgs(1, func(c *ishell.Context) {
			conn := simFrom(c).Bus().NewConnection("shell")
			defer conn.Disconnect()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			on := c.Args[0] == "on"
			rep, err := conn.RequestWait(ctx, conn.NewMessage(config.TopicDiagSet, types.DiagConfig{Reports: on, Lines: true}, false))
			if err != nil {
				c.Err(err)
				return
			}
			if code, _ := rep.Payload.(errcode.Code); code != errcode.OK {
				c.Err(errcode.New(code, "reports", "rejected"))
			}
		}),
	}
)
