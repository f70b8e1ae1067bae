package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/smartport/pkg/mpu"
	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/robot"
	"github.com/gwillem/smartport/pkg/sts"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

const simulatorChoice = "simulator"

type SetupCommand struct {
	NoCalibrate bool `long:"no-calibrate" description:"Skip recording servo travel limits"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("smartport setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	if robot.ConfigExists(opts.Config) {
		overwrite := false
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("%s exists. Overwrite?", opts.Config)).
			Value(&overwrite).
			Run(); err != nil || !overwrite {
			return nil
		}
	}

	busPort, servos := chooseBus()

	var cfg robot.Config
	if busPort == simulatorChoice {
		cfg.Simulate = true
		cfg.Devices = askDevices()
	} else {
		cfg.Servo = &robot.ServoConfig{Port: busPort, BaudRate: sts.DefaultBaudRate}
		cfg.Devices = nameServos(servos)
		if imu, dev := askImu(cfg.Devices); imu != nil {
			cfg.Imu = imu
			cfg.Devices = append(cfg.Devices, dev)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if cfg.Servo != nil && !c.NoCalibrate {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating servos ━━━"))
		fmt.Println()
		cals, err := calibrateBus(cfg.Servo.Port, servos, cfg.Devices)
		if err != nil {
			return err
		}
		cfg.Servo.Calibration = cals
		if err := cfg.SaveTo(opts.Config); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Watch your devices with: " + headerStyle.Render("smartport monitor"))
	return nil
}

// chooseBus asks which serial port carries the servo bus. Only ports with
// servos on them are offered, plus the simulator.
func chooseBus() (string, []feetech.FoundServo) {
	fmt.Println("Scanning for servo buses...")
	fmt.Println()

	var found map[string][]feetech.FoundServo
	if ports, err := sts.SerialPorts(); err != nil {
		fmt.Printf("  %v\n", err)
	} else {
		found = sts.Probe(context.Background(), ports)
	}

	var options []huh.Option[string]
	for p, servos := range found {
		label := fmt.Sprintf("%s (%d servos)", p, len(servos))
		options = append(options, huh.NewOption(label, p))
	}
	options = append(options, huh.NewOption("Simulator (no hardware)", simulatorChoice))

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which bus should smartport drive?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return choice, found[choice]
}

// nameServos asks for a name and direction for each servo. Servo ID n is
// served on smart port n.
func nameServos(servos []feetech.FoundServo) []robot.DeviceConfig {
	var devices []robot.DeviceConfig
	for _, s := range servos {
		if !port.Index(s.ID).Valid() {
			fmt.Printf("  Skipping servo %d: outside ports %d-%d\n", s.ID, port.MinIndex, port.MaxIndex)
			continue
		}
		name := fmt.Sprintf("motor%d", s.ID)
		reversed := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("Name for servo %d", s.ID)).
					Value(&name).
					Validate(validateName(devices)),
				huh.NewConfirm().
					Title("Reversed?").
					Description("Positive commands turn the servo clockwise").
					Value(&reversed),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
		devices = append(devices, robot.DeviceConfig{
			Name:     strings.TrimSpace(name),
			Kind:     port.DeviceMotor.String(),
			Port:     port.Index(s.ID),
			Reversed: reversed,
		})
	}
	return devices
}

// askImu asks whether an MPU is wired and which port it should answer on.
func askImu(taken []robot.DeviceConfig) (*robot.ImuConfig, robot.DeviceConfig) {
	var (
		wired   bool
		bus     = mpu.BusI2C
		name    string
		portStr string
		devName = "imu"
	)
	if err := huh.NewConfirm().Title("Is an MPU IMU connected?").Value(&wired).Run(); err != nil || !wired {
		return nil, robot.DeviceConfig{}
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Bus").
				Options(huh.NewOption("I²C", mpu.BusI2C), huh.NewOption("SPI", mpu.BusSPI)).
				Value(&bus),
			huh.NewInput().
				Title("Bus name").
				Description("Empty for the first bus of that kind").
				Value(&name),
			huh.NewInput().
				Title("Device name").
				Value(&devName).
				Validate(validateName(taken)),
			huh.NewInput().
				Title("Smart port").
				Value(&portStr).
				Validate(validatePort(taken)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	idx, _ := parsePort(portStr)
	return &robot.ImuConfig{Bus: bus, Name: name, Port: idx}, robot.DeviceConfig{
		Name: strings.TrimSpace(devName),
		Kind: port.DeviceImu.String(),
		Port: idx,
	}
}

// askDevices builds a simulated device list one device at a time.
func askDevices() []robot.DeviceConfig {
	var devices []robot.DeviceConfig
	kinds := []port.DeviceType{
		port.DeviceMotor, port.DeviceRotation, port.DeviceEncoder, port.DeviceImu, port.DeviceDistance,
	}
	options := make([]huh.Option[string], len(kinds))
	for i, k := range kinds {
		options[i] = huh.NewOption(k.String(), k.String())
	}

	for {
		var (
			name    string
			kind    = port.DeviceMotor.String()
			portStr string
			more    bool
		)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().Title("Kind").Options(options...).Value(&kind),
				huh.NewInput().Title("Name").Value(&name).Validate(validateName(devices)),
				huh.NewInput().Title("Smart port").Value(&portStr).Validate(validatePort(devices)),
				huh.NewConfirm().Title("Add another device?").Value(&more),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
		idx, _ := parsePort(portStr)
		devices = append(devices, robot.DeviceConfig{Name: strings.TrimSpace(name), Kind: kind, Port: idx})
		if !more {
			return devices
		}
	}
}

func validateName(taken []robot.DeviceConfig) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return errors.New("name is required")
		}
		for _, d := range taken {
			if d.Name == s {
				return fmt.Errorf("%q is taken", s)
			}
		}
		return nil
	}
}

func validatePort(taken []robot.DeviceConfig) func(string) error {
	return func(s string) error {
		idx, err := parsePort(s)
		if err != nil {
			return err
		}
		for _, d := range taken {
			if d.Port == idx {
				return fmt.Errorf("%s is used by %s", idx, d.Name)
			}
		}
		return nil
	}
}

func parsePort(s string) (port.Index, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !port.Index(n).Valid() {
		return 0, fmt.Errorf("enter a port from %d to %d", port.MinIndex, port.MaxIndex)
	}
	return port.Index(n), nil
}

// calibrateBus records each servo's travel while the user moves it by hand.
// The homing offset is the middle of the recorded range.
func calibrateBus(busPort string, found []feetech.FoundServo, devices []robot.DeviceConfig) (sts.Calibrations, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     busPort,
		BaudRate: sts.DefaultBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", busPort, err)
	}
	defer bus.Close()

	names := make(map[port.Index]string, len(devices))
	for _, d := range devices {
		names[d.Port] = d.Name
	}

	ctx := context.Background()
	var joints []joint
	for _, s := range found {
		name, ok := names[port.Index(s.ID)]
		if !ok {
			continue
		}
		servo := feetech.NewServo(bus, s.ID, s.Model)
		// Disable so the user can move the servo freely
		servo.Disable(ctx)
		pos, _ := servo.Position(ctx)
		joints = append(joints, joint{id: s.ID, name: name, servo: servo, cur: pos, min: pos, max: pos})
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each servo to its minimum AND maximum positions.")
	fmt.Println()

	p := tea.NewProgram(calibrationModel{joints: joints})
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}

	cm := final.(calibrationModel)
	cals := make(sts.Calibrations, 0, len(cm.joints))
	for _, j := range cm.joints {
		cals = append(cals, sts.Calibration{
			ID:           j.id,
			HomingOffset: (j.min + j.max) / 2,
			RangeMin:     j.min,
			RangeMax:     j.max,
		})
	}
	return cals, nil
}

type joint struct {
	id    int
	name  string
	servo *feetech.Servo
	cur   int
	min   int
	max   int
}

// Calibration TUI model
type calibrationModel struct {
	joints   []joint
	quitting bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i := range m.joints {
			j := &m.joints[i]
			pos, err := j.servo.Position(ctx)
			if err != nil {
				continue
			}
			j.cur = pos
			j.min = min(j.min, pos)
			j.max = max(j.max, pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	for _, j := range m.joints {
		rows = append(rows, []string{
			j.name,
			strconv.Itoa(j.id),
			strconv.Itoa(j.cur),
			strconv.Itoa(j.min),
			strconv.Itoa(j.max),
			strconv.Itoa(j.max - j.min),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Device", "Port", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableNameStyle
			case 2:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(m.joints) && m.joints[row].max-m.joints[row].min > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))
	return sb.String()
}
