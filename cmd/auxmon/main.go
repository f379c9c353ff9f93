// Command auxmon reads the controller's diagnostic output from a serial
// port and prints the decoded reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang/glog"

	"auxcam-go/services/config"
	"auxcam-go/services/diag"
	"auxcam-go/types"
)

var (
	configFile = flag.String("config", "auxmon.yaml", "Configuration file; missing means defaults.")
	portName   = flag.String("port", "", "Serial port; overrides the configuration.")
	baud       = flag.Int("baud", 0, "Baud rate; overrides the configuration.")
	list       = flag.Bool("list", false, "List serial ports and exit.")
	raw        = flag.Bool("raw", false, "Print report lines as received.")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if *list {
		ports, err := diag.Ports()
		if err != nil {
			glog.Exitf("ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	mc := cfg.Monitor
	if *portName != "" {
		mc.Port = *portName
	}
	if *baud > 0 {
		mc.Baud = *baud
	}

	port, err := diag.OpenPort(mc.Port, mc.Baud, mc.ReadTimeout)
	if err != nil {
		glog.Exitf("%v", err)
	}
	defer port.Close()
	glog.Infof("monitoring %s at %d baud", mc.Port, mc.Baud)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	m := diag.NewMonitor(port, 64)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	for {
		select {
		case r := <-m.Reports():
			printReport(r)
		case l := <-m.Lines():
			fmt.Printf("%s  %s\n", time.Now().Format("15:04:05.000"), l)
		case err := <-done:
			if n := m.Dropped(); n > 0 {
				glog.Warningf("%d lines dropped", n)
			}
			if err != nil && ctx.Err() == nil {
				glog.Exitf("read: %v", err)
			}
			return
		}
	}
}

func printReport(r types.DiagReport) {
	if *raw {
		fmt.Println(string(diag.Format(nil, r)))
		return
	}
	var held []string
	names := [...]string{"shutter", "top", "middle", "bottom"}
	for i, released := range r.Buttons {
		if !released {
			held = append(held, names[i])
		}
	}
	fmt.Printf("%s  battery %d mV (avg %d)  vout %d mV  presses %d/%d/%d/%d  held [%s]  display %s  ticks %d  %s\n",
		time.Now().Format("15:04:05.000"),
		r.BatteryMV, r.AverageMV, r.BoardVoutMV,
		r.Shutter, r.Top, r.Middle, r.Bottom,
		strings.Join(held, " "), r.Display, r.Ticks, strings.Join(r.Errors, "|"))
}
