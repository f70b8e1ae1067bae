package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/smartport/pkg/robot"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"smartport.json" description:"Configuration file (.json or .yaml)"`
	Sim     bool   `long:"sim" description:"Serve every device from the simulator"`
	Verbose []bool `short:"v" long:"verbose" description:"Log driver calls (repeat for debug)"`

	Ports   PortsCommand   `command:"ports" description:"List serial ports and the servos on them"`
	Setup   SetupCommand   `command:"setup" description:"Pick a servo bus, name its devices and calibrate them"`
	Info    InfoCommand    `command:"info" description:"Show configured devices and what is plugged in"`
	Move    MoveCommand    `command:"move" description:"Move motors to absolute positions (name=position)"`
	Monitor MonitorCommand `command:"monitor" alias:"mon" description:"Live chart of every device"`
	Record  RecordCommand  `command:"record" description:"Record telemetry to a CBOR file"`
	Replay  ReplayCommand  `command:"replay" description:"Print samples from a recording"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "smartport - smart port device control for STS servo buses and IMUs"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// logger writes to stderr at a level picked by the number of -v flags.
// Without -v nothing is logged so the TUIs stay clean.
func logger() *slog.Logger {
	switch len(opts.Verbose) {
	case 0:
		return slog.New(slog.DiscardHandler)
	case 1:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'smartport setup' first)", err)
	}
	if opts.Sim {
		cfg.Simulate = true
	}
	return cfg, nil
}

func openRobot(ctx context.Context) (*robot.Robot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return robot.Build(ctx, *cfg, logger())
}
