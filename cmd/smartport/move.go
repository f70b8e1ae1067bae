package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type MoveCommand struct {
	RPM  int32         `long:"rpm" default:"50" description:"Maximum velocity"`
	Wait time.Duration `long:"wait" default:"1s" description:"Time to wait before reading back positions"`

	Args struct {
		Targets []string `positional-arg-name:"name=position" required:"1"`
	} `positional-args:"yes"`
}

func (c *MoveCommand) Execute(args []string) error {
	targets, err := parseTargets(c.Args.Targets)
	if err != nil {
		return err
	}

	ctx := context.Background()
	r, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.MoveAll(ctx, targets, c.RPM); err != nil {
		return err
	}
	time.Sleep(c.Wait)

	positions, err := r.Positions(ctx)
	names := make([]string, 0, len(positions))
	for name := range positions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %8.1f\n", name, positions[name])
	}
	return err
}

func parseTargets(args []string) (map[string]float64, error) {
	targets := make(map[string]float64, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=position, got %q", arg)
		}
		pos, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad position %q", name, value)
		}
		targets[name] = pos
	}
	return targets, nil
}
