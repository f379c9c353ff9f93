// Command auxsim runs the controller firmware on a simulated board with
// an interactive shell acting as the host.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"auxcam-go/services/config"
)

var (
	configFile = flag.String("config", "auxsim.yaml", "Configuration file; missing means defaults.")
	evalOnly   = flag.Bool("e", false, "Evaluate the arguments as a command, no interactive shell.")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewSim(ctx, cfg, os.Stdout)
	if err != nil {
		glog.Exitf("boot: %v", err)
	}
	glog.Infof("simulated board up at %v", s.Status().Now)

	sh := newShell(s)
	if args := flag.Args(); len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if *evalOnly {
		glog.Exit("command expected")
	}
	sh.Run()
}
