// Package config owns the device settings file. Process-level settings
// (broker URL, paths, log level) come from the environment instead and are
// read in main.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type DeviceSettings struct {
	ServerURL    string `yaml:"server_url"`
	APIKey       string `yaml:"api_key"`
	Name         string `yaml:"name"`
	Location     string `yaml:"location"`
	SerialNumber string `yaml:"serial_number"`
	TeamID       string `yaml:"team_id"`
}

type MainSettings struct {
	SelectedProductID     int64   `yaml:"selected_product_id"`
	GoalCPH               float64 `yaml:"goal_cph"`
	SelectedOperatorID    int64   `yaml:"selected_operator_id"`
	MinorStopDurationSecs int     `yaml:"minor_stop_duration_secs"`
}

type Settings struct {
	Device DeviceSettings `yaml:"device"`
	Main   MainSettings   `yaml:"main"`

	path string
}

// Load reads the settings file at path. A missing file is not an error: the
// server pushes name and location after the first announcement, so a fresh
// device starts with zero values.
func Load(path string) (*Settings, error) {
	s := &Settings{path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err = yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes the settings back to the file they were loaded from.
func (s *Settings) Save() error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err = os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
