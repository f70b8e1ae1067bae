package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gwillem/smartport/pkg/telemetry"
)

type RecordCommand struct {
	Out      string        `short:"o" long:"out" default:"smartport.cbor" description:"Recording file (appended to)"`
	Hz       int           `long:"hz" default:"20" description:"Sampling frequency"`
	Duration time.Duration `short:"d" long:"duration" description:"Stop after this long (default: until interrupted)"`
}

func (c *RecordCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	r, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	rec, err := telemetry.NewFileRecorder(c.Out)
	if err != nil {
		return err
	}
	defer rec.Close()

	sampler := telemetry.NewSampler(r, telemetry.Config{Hz: c.Hz, Recorder: rec})
	fmt.Printf("Recording session %s to %s (Ctrl+C to stop)\n", sampler.Session(), c.Out)

	go func() {
		for msg := range sampler.Logs() {
			fmt.Println(dimStyle.Render(msg))
		}
	}()

	err = sampler.Start(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return err
}

type ReplayCommand struct {
	Session string `short:"s" long:"session" description:"Only samples from this session"`
	Device  string `long:"device" description:"Only samples with a reading from this device"`
	Since   string `long:"since" description:"Only samples at or after this RFC 3339 time"`
	Until   string `long:"until" description:"Only samples before this RFC 3339 time"`

	Args struct {
		File string `positional-arg-name:"file" description:"Recording file (default: smartport.cbor)"`
	} `positional-args:"yes"`
}

func (c *ReplayCommand) Execute(args []string) error {
	filter := telemetry.Filter{Session: c.Session, Device: c.Device}
	var err error
	if filter.TimeStart, err = parseTime(c.Since); err != nil {
		return err
	}
	if filter.TimeEnd, err = parseTime(c.Until); err != nil {
		return err
	}

	file := c.Args.File
	if file == "" {
		file = "smartport.cbor"
	}
	rd, err := telemetry.NewFilteredReader(file, filter)
	if err != nil {
		return err
	}
	defer rd.Close()

	for {
		s, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		fmt.Println(formatSample(s))
	}
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("bad time %q: %w", s, err)
	}
	return &t, nil
}

// formatSample renders one sample on a single line, devices sorted by name.
func formatSample(s telemetry.Sample) string {
	var parts []string
	for name, m := range s.Motors {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, m.Position))
	}
	for name, a := range s.Angles {
		parts = append(parts, fmt.Sprintf("%s=%.2f°", name, float64(a.Position)/100))
	}
	for name, i := range s.Imus {
		parts = append(parts, fmt.Sprintf("%s=%.1f°", name, i.Heading))
	}
	for name, d := range s.Distances {
		parts = append(parts, fmt.Sprintf("%s=%dmm", name, d.Millimeters))
	}
	sort.Strings(parts)
	line := fmt.Sprintf("%s #%d %s", s.Timestamp.Format(time.RFC3339Nano), s.Seq, strings.Join(parts, " "))
	if len(s.Errors) > 0 {
		line += " " + dimStyle.Render("errors: "+strings.Join(s.Errors, "; "))
	}
	return line
}
