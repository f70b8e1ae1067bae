package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/smartport/pkg/driver"
	"github.com/gwillem/smartport/pkg/port"
	"github.com/gwillem/smartport/pkg/sts"
)

const DefaultConfigFile = "smartport.json"

// Config holds the robot configuration.
type Config struct {
	// Simulate serves every device from the in-memory backend.
	Simulate bool           `json:"simulate,omitempty" yaml:"simulate,omitempty"`
	Servo    *ServoConfig   `json:"servo,omitempty" yaml:"servo,omitempty"`
	Imu      *ImuConfig     `json:"imu,omitempty" yaml:"imu,omitempty"`
	Devices  []DeviceConfig `json:"devices" yaml:"devices"`
}

// ServoConfig holds the serial bus of the STS servos.
type ServoConfig struct {
	Port        string           `json:"port" yaml:"port"`
	BaudRate    int              `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	Calibration sts.Calibrations `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// IsCalibrated returns true if the bus has calibration data
func (s *ServoConfig) IsCalibrated() bool {
	return len(s.Calibration) > 0
}

// ImuConfig holds the bus and port of the IMU.
type ImuConfig struct {
	Bus  string     `json:"bus" yaml:"bus"`
	Name string     `json:"name,omitempty" yaml:"name,omitempty"`
	Addr uint16     `json:"addr,omitempty" yaml:"addr,omitempty"`
	Port port.Index `json:"port" yaml:"port"`
}

// DeviceConfig names one device and the configuration its handle installs.
type DeviceConfig struct {
	Name     string     `json:"name" yaml:"name"`
	Kind     string     `json:"kind" yaml:"kind"`
	Port     port.Index `json:"port" yaml:"port"`
	Gearset  string     `json:"gearset,omitempty" yaml:"gearset,omitempty"`
	Reversed bool       `json:"reversed,omitempty" yaml:"reversed,omitempty"`
	Units    string     `json:"units,omitempty" yaml:"units,omitempty"`
}

// Validate checks names, kinds, ports and motor settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("device on %s has no name", d.Port)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate device name %q", d.Name)
		}
		seen[d.Name] = true
		if !d.Port.Valid() {
			return fmt.Errorf("device %q: %w", d.Name, port.ErrInvalidPort)
		}
		kind, err := port.ParseDeviceType(d.Kind)
		if err != nil || kind == port.DeviceNone {
			return fmt.Errorf("device %q: unknown kind %q", d.Name, d.Kind)
		}
		if _, err := driver.ParseGearset(d.Gearset); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if _, err := driver.ParseEncoderUnits(d.Units); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
