package config

import "testing"

func intPtr(v int) *int { return &v }

func seedOptions() *Options {
	return NewOptions([]Heater{
		{ID: "living_room", TimerMinutes: intPtr(30), RememberLastTemp: true},
		{ID: "bedroom", TimerMinutes: intPtr(0)},
	})
}

func TestNewOptions_DefaultsOmittedTimer(t *testing.T) {
	o := NewOptions([]Heater{{ID: "attic"}})
	if got := o.TimerMinutes("attic"); got != DefaultTimerMinutes {
		t.Fatalf("expected default timer %d, got %d", DefaultTimerMinutes, got)
	}
}

func TestOptions_SeededFromHeaters(t *testing.T) {
	o := seedOptions()

	opts, ok := o.Get("living_room")
	if !ok || opts.TimerMinutes != 30 || !opts.RememberLastTemp {
		t.Fatalf("unexpected options %+v (ok=%v)", opts, ok)
	}
	if got := o.TimerMinutes("bedroom"); got != 0 {
		t.Fatalf("expected disabled timer, got %d", got)
	}
	if _, ok := o.Get("garage"); ok {
		t.Fatalf("expected unknown heater to report !ok")
	}
}

func TestOptions_UpdateTakesEffectImmediately(t *testing.T) {
	o := seedOptions()

	if err := o.Update("bedroom", HeaterOptions{TimerMinutes: 15}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := o.TimerMinutes("bedroom"); got != 15 {
		t.Fatalf("expected updated timer 15, got %d", got)
	}
}

func TestOptions_UpdateValidation(t *testing.T) {
	o := seedOptions()

	if err := o.Update("bedroom", HeaterOptions{TimerMinutes: -1}); err == nil {
		t.Fatalf("expected error for negative timer")
	}
	if err := o.Update("garage", HeaterOptions{TimerMinutes: 5}); err == nil {
		t.Fatalf("expected error for unknown heater")
	}
	// failed updates leave existing values untouched
	if got := o.TimerMinutes("bedroom"); got != 0 {
		t.Fatalf("expected timer unchanged, got %d", got)
	}
}
