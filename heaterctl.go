package heaterctl

import "time"

// HVACMode is the operating mode of a heater entity.
type HVACMode string

const (
	ModeOff  HVACMode = "off"
	ModeHeat HVACMode = "heat"
)

// Valid reports whether m is a mode this integration supports.
func (m HVACMode) Valid() bool {
	return m == ModeOff || m == ModeHeat
}

// HeaterState is the externally visible snapshot of one heater.
type HeaterState struct {
	HeaterID    string     `json:"heater_id"`
	Name        string     `json:"name"`
	Mode        HVACMode   `json:"mode"`                   // off | heat
	CurrentTemp *float64   `json:"current_temp,omitempty"` // °C, nil when the sensor is unavailable
	TargetTemp  float64    `json:"target_temp"`            // °C, always within [MinTemp, MaxTemp]
	MinTemp     float64    `json:"min_temp"`
	MaxTemp     float64    `json:"max_temp"`
	TargetStep  float64    `json:"target_step"`            // fixed at 1.0
	PowerUsage  *float64   `json:"power_usage,omitempty"`  // last reading, nil when unavailable
	HeatStart   *time.Time `json:"heat_start,omitempty"`   // nil unless Mode == heat
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HeaterEvent is a single log entry.
type HeaterEvent struct {
	EventID     string    `json:"event_id"`
	HeaterID    string    `json:"heater_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // MODE_CHANGE | TEMP_CHANGE | TIMER_OFF | AUTO_ON | SCENE_ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// Event types appended by the climate service.
const (
	EventModeChange    = "MODE_CHANGE"
	EventTempChange    = "TEMP_CHANGE"
	EventTimerOff      = "TIMER_OFF"
	EventAutoOn        = "AUTO_ON"
	EventSceneError    = "SCENE_ERROR"
	EventOptionsChange = "OPTIONS_CHANGE"
)

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
