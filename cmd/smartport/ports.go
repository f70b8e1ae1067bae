package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/smartport/pkg/sts"
)

type PortsCommand struct{}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := sts.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	fmt.Printf("Scanning %d serial port(s) for servos...\n\n", len(ports))
	found := sts.Probe(context.Background(), ports)

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		servos := found[p]
		if len(servos) == 0 {
			rows = append(rows, []string{p, "-", "-"})
			continue
		}
		for _, s := range servos {
			rows = append(rows, []string{p, strconv.Itoa(s.ID), fmt.Sprint(s.Model)})
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Serial port", "Smart port", "Model").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableNameStyle
			}
			return tableCellStyle
		})
	fmt.Println(t.Render())
	return nil
}
