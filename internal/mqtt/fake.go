package mqtt

import (
	"context"
	"sync"

	"heaterctl/internal/climate"
)

// Fake is an in-memory Bus for tests: readings are scripted, scene
// activations are recorded, and sensor pushes are injected manually.
type Fake struct {
	mu          sync.Mutex
	readings    map[string]float64
	subs        map[string]map[int]func(climate.SensorUpdate)
	nextSub     int
	activations []string
	sceneErrs   map[string]error
	states      map[string][]byte
}

func NewFake() *Fake {
	return &Fake{
		readings:  make(map[string]float64),
		subs:      make(map[string]map[int]func(climate.SensorUpdate)),
		sceneErrs: make(map[string]error),
		states:    make(map[string][]byte),
	}
}

// SetReading scripts the cached value of a sensor.
func (f *Fake) SetReading(sensorID string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[sensorID] = v
}

// ClearReading marks a sensor unavailable.
func (f *Fake) ClearReading(sensorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.readings, sensorID)
}

// FailScene makes future activations of a scene return err (nil to reset).
func (f *Fake) FailScene(sceneID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.sceneErrs, sceneID)
		return
	}
	f.sceneErrs[sceneID] = err
}

// Inject updates the cache like a broker message would and pushes the
// change to subscribers.
func (f *Fake) Inject(sensorID string, value float64, valid bool) {
	f.mu.Lock()
	if valid {
		f.readings[sensorID] = value
	} else {
		delete(f.readings, sensorID)
	}
	var fns []func(climate.SensorUpdate)
	for _, fn := range f.subs[sensorID] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	u := climate.SensorUpdate{SensorID: sensorID, Value: value, Valid: valid}
	for _, fn := range fns {
		fn(u)
	}
}

// Activations returns a copy of the scene ids activated so far, in order.
func (f *Fake) Activations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.activations))
	copy(out, f.activations)
	return out
}

// LastState returns the latest mirrored state payload for a heater.
func (f *Fake) LastState(heaterID string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.states[heaterID]
	return p, ok
}

// --- Bus implementation ---

func (f *Fake) Read(sensorID string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.readings[sensorID]
	return v, ok
}

func (f *Fake) SubscribeSensor(sensorID string, fn func(climate.SensorUpdate)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[sensorID] == nil {
		f.subs[sensorID] = make(map[int]func(climate.SensorUpdate))
	}
	id := f.nextSub
	f.nextSub++
	f.subs[sensorID][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[sensorID], id)
	}
}

func (f *Fake) Activate(_ context.Context, sceneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sceneErrs[sceneID]; err != nil {
		return err
	}
	f.activations = append(f.activations, sceneID)
	return nil
}

func (f *Fake) PublishState(heaterID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[heaterID] = append([]byte(nil), payload...)
	return nil
}

func (f *Fake) Close() error { return nil }
