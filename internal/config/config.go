package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Defaults applied when a heater definition omits the optional fields.
const (
	DefaultMinTemp      = 16.0
	DefaultMaxTemp      = 30.0
	DefaultDefaultTemp  = 20.0
	DefaultTimerMinutes = 30
)

var errNoHeaters = errors.New("no heaters configured")

// Heater is the validated configuration of one controlled heater.
// The immutable part identifies sensors, scenes and temperature bounds;
// TimerMinutes and RememberLastTemp are the mutable options subset,
// seeded here and refreshed at runtime through the Options store.
type Heater struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`

	// Scene bindings. The toggle scene is the remote's single power button,
	// used for both turning the heater on and off.
	ToggleScene string `mapstructure:"scene_turn_on_off"`
	UpScene     string `mapstructure:"temperature_up_scene"`
	DownScene   string `mapstructure:"temperature_down_scene"`

	// Sensor bindings. PowerSensor is optional; without it power state can
	// never be inferred and the controller falls back to failsafe toggling.
	TempSensor  string `mapstructure:"temperature_sensor"`
	PowerSensor string `mapstructure:"power_usage"`

	MinTemp     float64 `mapstructure:"min_temp"`
	MaxTemp     float64 `mapstructure:"max_temp"`
	DefaultTemp float64 `mapstructure:"default_temp"`

	// TimerMinutes is decoded as a pointer so an omitted key can be told
	// apart from an explicit 0, which disables the auto-off timer.
	TimerMinutes     *int `mapstructure:"timer"`
	RememberLastTemp bool `mapstructure:"remember_last_temp"`
}

// validate checks required bindings and the temperature bounds invariant.
func (h *Heater) validate() error {
	if h.ID == "" {
		return errors.New("heater id is required")
	}
	if h.ToggleScene == "" || h.UpScene == "" || h.DownScene == "" {
		return fmt.Errorf("heater %q: all three scene bindings are required", h.ID)
	}
	if h.TempSensor == "" {
		return fmt.Errorf("heater %q: temperature_sensor is required", h.ID)
	}
	if h.MinTemp >= h.MaxTemp {
		return fmt.Errorf("heater %q: min_temp %.1f must be below max_temp %.1f", h.ID, h.MinTemp, h.MaxTemp)
	}
	if h.DefaultTemp < h.MinTemp || h.DefaultTemp > h.MaxTemp {
		return fmt.Errorf("heater %q: default_temp %.1f outside [%.1f, %.1f]", h.ID, h.DefaultTemp, h.MinTemp, h.MaxTemp)
	}
	if h.TimerMinutes != nil && *h.TimerMinutes < 0 {
		return fmt.Errorf("heater %q: timer must be >= 0 minutes", h.ID)
	}
	return nil
}

// applyDefaults fills omitted optional fields with the standard defaults.
func (h *Heater) applyDefaults() {
	if h.Name == "" {
		h.Name = h.ID
	}
	if h.MinTemp == 0 && h.MaxTemp == 0 {
		h.MinTemp = DefaultMinTemp
		h.MaxTemp = DefaultMaxTemp
	}
	if h.DefaultTemp == 0 {
		h.DefaultTemp = DefaultDefaultTemp
	}
	if h.TimerMinutes == nil {
		timer := DefaultTimerMinutes
		h.TimerMinutes = &timer
	}
}

// LoadHeaters reads and validates the heater definitions from the loaded
// viper configuration (`heaters:` list in configs/config.yml).
func LoadHeaters() ([]Heater, error) {
	var heaters []Heater
	if err := viper.UnmarshalKey("heaters", &heaters); err != nil {
		return nil, fmt.Errorf("parse heaters config: %w", err)
	}
	if len(heaters) == 0 {
		return nil, errNoHeaters
	}
	seen := make(map[string]bool, len(heaters))
	for i := range heaters {
		heaters[i].applyDefaults()
		if err := heaters[i].validate(); err != nil {
			return nil, err
		}
		if seen[heaters[i].ID] {
			return nil, fmt.Errorf("duplicate heater id %q", heaters[i].ID)
		}
		seen[heaters[i].ID] = true
	}
	return heaters, nil
}
