// Package climate implements the heater control state machine: mapping
// discrete remote-control button presses to a continuous target temperature,
// inferring physical power state from a power-draw sensor, and reconciling
// the heater toward its target in a background loop.
package climate

import (
	"context"
	"time"

	"heaterctl"
)

// SceneActivator triggers a named remote scene, blocking until the command
// is acknowledged or times out. What hardware the scene drives is opaque.
type SceneActivator interface {
	Activate(ctx context.Context, sceneID string) error
}

// SensorReader returns the latest numeric reading of a named sensor.
// ok is false when the sensor is unknown, stale or reported unavailable.
type SensorReader interface {
	Read(sensorID string) (value float64, ok bool)
}

// SensorUpdate is a push notification of a sensor value change.
type SensorUpdate struct {
	SensorID string
	Value    float64
	Valid    bool // false when the sensor went unavailable
}

// SensorSource combines cached reads with push subscriptions.
type SensorSource interface {
	SensorReader
	// SubscribeSensor registers fn for value changes of one sensor and
	// returns a function that removes the subscription.
	SubscribeSensor(sensorID string, fn func(SensorUpdate)) (cancel func())
}

// OptionsSource supplies the live mutable options. TimerMinutes must be read
// on every cycle, never cached, so option updates apply without a restart.
type OptionsSource interface {
	TimerMinutes(heaterID string) int
}

// StatePublisher receives every externally visible state snapshot.
type StatePublisher func(s heaterctl.HeaterState)

// Notifier receives noteworthy controller events for the event log.
type Notifier func(eventType, description string, meta map[string]any)

// Timings groups every delay, interval and threshold the controller uses.
// Production values follow the physical device's behavior; tests shrink them.
type Timings struct {
	MonitorInterval time.Duration // between reconciliation cycles
	OffVerifyWait   time.Duration // after a timer-expiry toggle, before re-checking power
	SettleDelay     time.Duration // after a scene press, before the next decision
	StepDelay       time.Duration // between temperature step presses
	HeatCooldown    time.Duration // suppresses rapid off->heat flapping
	AutoOnCooldown  time.Duration // suppresses auto-on right after a mode change
	StopWait        time.Duration // bound on waiting for the monitor loop to stop
	PowerThreshold  float64       // watts at or above which the heater counts as on
}

// DefaultTimings returns the production timing profile.
func DefaultTimings() Timings {
	return Timings{
		MonitorInterval: 120 * time.Second,
		OffVerifyWait:   60 * time.Second,
		SettleDelay:     1 * time.Second,
		StepDelay:       1500 * time.Millisecond,
		HeatCooldown:    10 * time.Second,
		AutoOnCooldown:  15 * time.Second,
		StopWait:        2 * time.Second,
		PowerThreshold:  10,
	}
}

// sleepCtx waits for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
