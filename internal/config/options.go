package config

import (
	"fmt"
	"sync"
)

// HeaterOptions is the mutable options subset of a heater configuration.
type HeaterOptions struct {
	TimerMinutes     int  `json:"timer"`
	RememberLastTemp bool `json:"remember_last_temp"`
}

// Options holds the live option values for every configured heater.
// Controllers read through it on every reconciliation cycle, so an update
// takes effect on the next cycle without restarting anything.
type Options struct {
	mu   sync.RWMutex
	byID map[string]HeaterOptions
}

// NewOptions seeds the store from the validated heater definitions.
func NewOptions(heaters []Heater) *Options {
	byID := make(map[string]HeaterOptions, len(heaters))
	for _, h := range heaters {
		timer := DefaultTimerMinutes
		if h.TimerMinutes != nil {
			timer = *h.TimerMinutes
		}
		byID[h.ID] = HeaterOptions{
			TimerMinutes:     timer,
			RememberLastTemp: h.RememberLastTemp,
		}
	}
	return &Options{byID: byID}
}

// TimerMinutes returns the auto-off timer for a heater, 0 meaning disabled.
func (o *Options) TimerMinutes(heaterID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.byID[heaterID].TimerMinutes
}

// Get returns the current options for a heater.
func (o *Options) Get(heaterID string) (HeaterOptions, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	opts, ok := o.byID[heaterID]
	return opts, ok
}

// Update replaces a heater's options after validation.
func (o *Options) Update(heaterID string, opts HeaterOptions) error {
	if opts.TimerMinutes < 0 {
		return fmt.Errorf("timer must be >= 0 minutes, got %d", opts.TimerMinutes)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.byID[heaterID]; !ok {
		return fmt.Errorf("unknown heater %q", heaterID)
	}
	o.byID[heaterID] = opts
	return nil
}
