package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/smartport/pkg/robot"
	"github.com/gwillem/smartport/pkg/telemetry"
)

type MonitorCommand struct {
	Hz   int     `long:"hz" default:"20" description:"Sampling frequency"`
	YMin float64 `long:"ymin" default:"-360" description:"Chart lower bound"`
	YMax float64 `long:"ymax" default:"360" description:"Chart upper bound"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Series colors, assigned in device order
var palette = []string{"196", "208", "226", "46", "51", "201", "33", "141", "214", "118"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// series is one charted device.
type series struct {
	name  string
	color string
}

type monitorModel struct {
	sampler    *telemetry.Sampler
	chart      *streamlinechart.Model
	series     []series
	width      int      // terminal width
	height     int      // terminal height
	logs       []string // last N log messages
	quitting   bool
	lastValues map[string]float64 // freeze the chart while nothing moves
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any charted value has changed from the last sample
func (m *monitorModel) hasMovement(values map[string]float64) bool {
	if m.lastValues == nil {
		return true
	}
	for name, v := range values {
		if last, ok := m.lastValues[name]; !ok || v != last {
			return true
		}
	}
	return false
}

// chartValues extracts the plotted value of every device in s.
func chartValues(s telemetry.Sample) map[string]float64 {
	values := make(map[string]float64)
	for name, r := range s.Motors {
		values[name] = r.Position
	}
	for name, r := range s.Angles {
		values[name] = float64(r.Position) / 100
	}
	for name, r := range s.Imus {
		values[name] = r.Heading
	}
	for name, r := range s.Distances {
		values[name] = float64(r.Millimeters) / 10
	}
	return values
}

// Messages from the sampler
type stateMsg telemetry.Sample
type logMsg string

func waitForState(s *telemetry.Sampler) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-s.States())
	}
}

func waitForLog(s *telemetry.Sampler) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-s.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newMonitorModel(s *telemetry.Sampler, devices []robot.DeviceInfo, ymin, ymax float64) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(ymin, ymax),
	)

	var lines []series
	for _, d := range devices {
		color := palette[len(lines)%len(palette)]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(d.Name, runes.ThinLineStyle, style)
		lines = append(lines, series{name: d.Name, color: color})
	}

	return monitorModel{
		sampler: s,
		chart:   &chart,
		series:  lines,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.sampler),
		waitForLog(m.sampler),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		sample := telemetry.Sample(msg)
		values := chartValues(sample)
		if m.hasMovement(values) {
			for name, v := range values {
				m.chart.PushDataSet(name, v)
			}
			m.chart.DrawAll()
			m.lastValues = values
		}
		for _, e := range sample.Errors {
			m.addLog(e)
		}
		return m, waitForState(m.sampler)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.sampler)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("smartport monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.sampler.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) renderLegend() string {
	items := make([]string, 0, len(m.series))
	for _, s := range m.series {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+s.name)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := openRobot(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	sampler := telemetry.NewSampler(r, telemetry.Config{Hz: c.Hz})
	go func() {
		if err := sampler.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Sampler error: %v", err)
		}
	}()

	p := tea.NewProgram(newMonitorModel(sampler, r.Devices(), c.YMin, c.YMax), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
