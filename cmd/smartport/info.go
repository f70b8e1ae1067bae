package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/robot"
	"github.com/gwillem/smartport/pkg/telemetry"
)

type InfoCommand struct{}

func (c *InfoCommand) Execute(args []string) error {
	ctx := context.Background()
	r, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	sample := telemetry.NewSampler(r, telemetry.Config{}).Step(ctx)
	plugged := r.Brain.Ports()

	fmt.Println(headerStyle.Render("Configured devices"))
	rows := make([][]string, 0, len(r.Devices()))
	missing := make([]bool, 0, len(r.Devices()))
	for _, d := range r.Devices() {
		got := plugged[d.Port]
		rows = append(rows, []string{d.Name, d.Kind.String(), strconv.Itoa(int(d.Port)), got.String(), reading(sample, d)})
		missing = append(missing, got != d.Kind)
	}
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Name", "Kind", "Port", "Plugged", "Reading").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableNameStyle
			}
			if col == 3 && row >= 0 && row < len(missing) && missing[row] {
				return badStyle
			}
			return tableCellStyle
		})
	fmt.Println(t.Render())

	fmt.Println()
	fmt.Println(headerStyle.Render("Smart ports"))
	var portRows [][]string
	for i := port.MinIndex; i <= port.MaxIndex; i++ {
		if d, ok := plugged[i]; ok {
			portRows = append(portRows, []string{strconv.Itoa(int(i)), d.String()})
		}
	}
	if len(portRows) == 0 {
		fmt.Println(dimStyle.Render("Nothing plugged in."))
	} else {
		fmt.Println(table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(dimStyle).
			Headers("Port", "Device").
			Rows(portRows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tableHeaderStyle
				}
				return tableCellStyle
			}).
			Render())
	}

	for _, e := range sample.Errors {
		fmt.Println(dimStyle.Render(e))
	}
	return nil
}

// reading formats the sampled value of one device.
func reading(s telemetry.Sample, d robot.DeviceInfo) string {
	if m, ok := s.Motors[d.Name]; ok {
		return fmt.Sprintf("%.1f (%.0f rpm)", m.Position, m.Velocity)
	}
	if a, ok := s.Angles[d.Name]; ok {
		return fmt.Sprintf("%.2f°", float64(a.Position)/100)
	}
	if i, ok := s.Imus[d.Name]; ok {
		return fmt.Sprintf("heading %.1f° pitch %.1f° roll %.1f°", i.Heading, i.Pitch, i.Roll)
	}
	if dist, ok := s.Distances[d.Name]; ok {
		return fmt.Sprintf("%d mm (confidence %d/63)", dist.Millimeters, dist.Confidence)
	}
	return "-"
}
