package climate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"heaterctl"
	"heaterctl/internal/logger"
)

// Domain errors surfaced to the API layer.
var (
	ErrUnsupportedMode       = errors.New("unsupported hvac mode")
	ErrTemperatureOutOfRange = errors.New("target temperature out of range")
)

// Config is the immutable per-heater configuration the controller runs with.
type Config struct {
	ID   string
	Name string

	ToggleScene string // the remote's single power button, on and off alike
	UpScene     string
	DownScene   string

	TempSensor  string
	PowerSensor string // optional; empty degrades to failsafe toggling

	MinTemp     float64
	MaxTemp     float64
	DefaultTemp float64
}

// Deps are the external collaborators a controller needs.
type Deps struct {
	Scenes  SceneActivator
	Sensors SensorSource
	Options OptionsSource
	Publish StatePublisher
	Notify  Notifier
	Log     *logger.Logger
}

// Controller owns the runtime state of one heater and is its only mutator.
//
// Locking discipline: opMu serializes whole operations (SetMode,
// SetTemperature, the auto-on transition) including their delays; mu guards
// the state fields and is never held across a sleep or scene call. The
// monitor loop takes only mu, never opMu, so an operation holding opMu can
// cancel the loop and wait for it without deadlocking. Every operation stops
// the monitor before mutating state, which keeps at most one active mutator
// of the runtime state at any time.
type Controller struct {
	cfg     Config
	t       Timings
	scenes  SceneActivator
	sensors SensorSource
	opts    OptionsSource
	publish StatePublisher
	notify  Notifier
	stepper *Stepper
	log     *logger.Logger

	opMu sync.Mutex

	mu             sync.Mutex
	mode           heaterctl.HVACMode
	target         float64
	heatStart      time.Time // zero unless mode == heat
	lastModeChange time.Time
	monitorCancel  context.CancelFunc
	monitorDone    chan struct{}

	events       chan SensorUpdate
	quit         chan struct{}
	unsubscribe  func()
	dispatchDone chan struct{}
	started      bool
	closeOnce    sync.Once
}

// New builds a controller for one heater. Call Start before use and Close
// on teardown.
func New(cfg Config, deps Deps, t Timings) *Controller {
	log := deps.Log.ForHeater(cfg.ID)
	scenes := countedScenes{heaterID: cfg.ID, inner: deps.Scenes}
	return &Controller{
		cfg:          cfg,
		t:            t,
		scenes:       scenes,
		sensors:      deps.Sensors,
		opts:         deps.Options,
		publish:      deps.Publish,
		notify:       deps.Notify,
		stepper:      NewStepper(scenes, cfg.UpScene, cfg.DownScene, t, log),
		log:          log,
		mode:         heaterctl.ModeOff,
		target:       cfg.DefaultTemp,
		events:       make(chan SensorUpdate, 16),
		quit:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
}

// countedScenes wraps a SceneActivator with the activation counter so every
// press, including the stepper's, is accounted for.
type countedScenes struct {
	heaterID string
	inner    SceneActivator
}

func (cs countedScenes) Activate(ctx context.Context, sceneID string) error {
	err := cs.inner.Activate(ctx, sceneID)
	recordSceneActivation(cs.heaterID, err)
	return err
}

// Start applies the restored snapshot, arms the power-sensor subscription
// and publishes the initial state. The restored target temperature is
// honored when it lies within bounds; the restored mode is not: a heater
// that was heating when the process stopped must always be re-armed
// explicitly, so startup mode is off.
func (c *Controller) Start(restored *heaterctl.HeaterState) {
	target := c.cfg.DefaultTemp
	if restored != nil && restored.TargetTemp >= c.cfg.MinTemp && restored.TargetTemp <= c.cfg.MaxTemp {
		target = restored.TargetTemp
	}

	c.mu.Lock()
	c.mode = heaterctl.ModeOff
	c.target = target
	c.started = true
	c.mu.Unlock()

	if c.cfg.PowerSensor != "" {
		c.unsubscribe = c.sensors.SubscribeSensor(c.cfg.PowerSensor, c.enqueuePowerUpdate)
	} else {
		c.log.Warnw("no power sensor configured; auto-on disabled and toggling is failsafe-only")
	}
	go c.dispatchPowerEvents()

	c.publishState()
	c.log.Infow("controller started", "target", target, "power_sensor", c.cfg.PowerSensor)
}

// Close detaches the sensor subscription and stops the background goroutines.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.mu.Unlock()

		close(c.quit)
		if c.unsubscribe != nil {
			c.unsubscribe()
			c.unsubscribe = nil
		}
		if started {
			<-c.dispatchDone
		}
		c.stopMonitor()
		c.log.Infow("controller closed")
	})
}

// Mode returns the current HVAC mode.
func (c *Controller) Mode() heaterctl.HVACMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the externally visible snapshot.
func (c *Controller) State() heaterctl.HeaterState {
	return c.buildState()
}

// SetMode switches the heater between off and heat.
//
// The running monitor loop is always cancelled and awaited before state
// changes, so no stale loop can act on the old mode. Switching to heat
// only presses the power button when the power draw does not already show
// the device on (or cannot be read at all); switching to off always presses
// it, best-effort.
func (c *Controller) SetMode(ctx context.Context, mode heaterctl.HVACMode) error {
	if !mode.Valid() {
		c.log.Warnw("rejecting unsupported hvac mode", "mode", mode)
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Mode() == mode {
		c.log.Debugw("requested hvac mode already active", "mode", mode)
		return nil
	}

	c.stopMonitor()

	var err error
	switch mode {
	case heaterctl.ModeHeat:
		err = c.transitionToHeat(ctx)
	case heaterctl.ModeOff:
		err = c.transitionToOff(ctx)
	}
	if err != nil {
		return err
	}

	c.publishState()
	c.notifyEvent(heaterctl.EventModeChange, "hvac mode set to "+string(mode), nil)
	return nil
}

func (c *Controller) transitionToHeat(ctx context.Context) error {
	c.mu.Lock()
	last := c.lastModeChange
	c.mu.Unlock()

	// Rate-limit UI flapping: a very recent mode change delays the switch,
	// it does not replace the actuator decision below.
	if !last.IsZero() && time.Since(last) < c.t.HeatCooldown {
		c.log.Debugw("mode changed recently, delaying before switching to heat", "cooldown", c.t.HeatCooldown)
		if !sleepCtx(ctx, c.t.HeatCooldown) {
			return ctx.Err()
		}
	}

	reading, ok := c.readPower()
	if state := ClassifyPower(reading, ok, c.t.PowerThreshold); state == PowerOn {
		c.log.Debugw("power draw at or above threshold, assuming heater already on", "power", reading)
	} else {
		// Inferred off or unknown, including "no power sensor at all":
		// press the power button and give the device a moment to respond.
		c.log.Debugw("power draw low or unknown, pressing power button", "power_state", state.String())
		if c.activateScene(ctx, c.cfg.ToggleScene, "turn on for heat") {
			if !sleepCtx(ctx, c.t.SettleDelay) {
				return ctx.Err()
			}
		}
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.mode = heaterctl.ModeHeat
	c.heatStart = now
	c.lastModeChange = now
	c.startMonitorLocked()
	c.mu.Unlock()

	c.log.Infow("hvac mode set to heat, monitor loop armed")
	return nil
}

func (c *Controller) transitionToOff(ctx context.Context) error {
	// Best-effort: there is no fallback action if the press fails, so a
	// failure is logged and the internal state still goes to off.
	c.activateScene(ctx, c.cfg.ToggleScene, "turn off")

	now := time.Now().UTC()
	c.mu.Lock()
	c.mode = heaterctl.ModeOff
	c.heatStart = time.Time{}
	c.lastModeChange = now
	c.mu.Unlock()

	c.log.Infow("hvac mode set to off")
	return nil
}

// SetTemperature drives the target temperature toward requested by pressing
// the up/down scene once per whole degree. On partial failure the target is
// left at the last achieved value, which is always within bounds.
func (c *Controller) SetTemperature(ctx context.Context, requested float64) error {
	if requested < c.cfg.MinTemp || requested > c.cfg.MaxTemp {
		c.log.Warnw("requested temperature out of range",
			"requested", requested, "min", c.cfg.MinTemp, "max", c.cfg.MaxTemp)
		return fmt.Errorf("%w: %.1f not in [%.1f, %.1f]", ErrTemperatureOutOfRange, requested, c.cfg.MinTemp, c.cfg.MaxTemp)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	current := c.target
	c.mu.Unlock()

	achieved, attempted, succeeded := c.stepper.Apply(ctx, current, requested, c.cfg.MinTemp, c.cfg.MaxTemp)
	if succeeded == attempted {
		// Every press registered: honor the exact request, not the
		// whole-degree approximation.
		achieved = requested
	} else {
		c.log.Warnw("target temperature only partially applied",
			"requested", requested, "achieved", achieved,
			"succeeded", succeeded, "attempted", attempted)
	}

	c.mu.Lock()
	c.target = achieved
	c.mu.Unlock()

	c.publishState()
	c.notifyEvent(heaterctl.EventTempChange, "target temperature changed", map[string]any{
		"requested": requested,
		"achieved":  achieved,
		"steps_ok":  succeeded,
		"steps":     attempted,
	})
	return nil
}

// --- monitor loop lifecycle ---

// startMonitorLocked launches the reconciliation loop. Caller holds mu.
// At most one live loop exists per controller.
func (c *Controller) startMonitorLocked() {
	if c.monitorDone != nil {
		select {
		case <-c.monitorDone:
			// previous loop already finished on its own
		default:
			c.log.Debugw("monitor loop already running")
			return
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.monitorCancel = cancel
	c.monitorDone = done
	go c.monitor(ctx, done)
}

// stopMonitor cancels the loop and waits for it, bounded by StopWait.
// Must be called without holding mu.
func (c *Controller) stopMonitor() {
	c.mu.Lock()
	cancel, done := c.monitorCancel, c.monitorDone
	c.monitorCancel, c.monitorDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(c.t.StopWait):
		c.log.Warnw("monitor loop did not stop within timeout")
	}
}

// monitor is the background reconciliation loop. It runs only while the
// mode is heat: checks the auto-off timer, nudges the temperature inside
// the dead-band rules, then sleeps until the next cycle. Cancellation at
// any sleep is normal termination, and a panic mid-cycle is caught and
// ends the loop rather than the process.
func (c *Controller) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.monitorDone == done {
			c.monitorCancel = nil
			c.monitorDone = nil
		}
		c.mu.Unlock()
		c.log.Infow("monitor loop stopped")
	}()
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("monitor loop aborted by panic", "panic", r)
		}
	}()

	c.log.Infow("monitor loop started")
	for {
		if ctx.Err() != nil || c.Mode() != heaterctl.ModeHeat {
			return
		}
		if c.runTimerCheck(ctx) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if c.Mode() == heaterctl.ModeHeat {
			c.maintainTemperature(ctx)
		}
		if c.Mode() != heaterctl.ModeHeat {
			return
		}
		if !sleepCtx(ctx, c.t.MonitorInterval) {
			return
		}
	}
}

// runTimerCheck enforces the auto-off timer. When it has expired it runs the
// two-stage off sequence and reports true, ending the loop: press the power
// button, wait for the device to wind down, re-check the power draw and
// press again if it still looks on, then force the mode to off regardless
// of the verification outcome.
func (c *Controller) runTimerCheck(ctx context.Context) bool {
	minutes := c.opts.TimerMinutes(c.cfg.ID)
	if minutes <= 0 {
		return false
	}

	c.mu.Lock()
	start := c.heatStart
	c.mu.Unlock()
	if start.IsZero() {
		return false
	}

	duration := time.Duration(minutes) * time.Minute
	elapsed := time.Since(start)
	if elapsed < duration {
		return false
	}

	c.log.Infow("auto-off timer expired, starting turn-off sequence",
		"elapsed", elapsed.Round(time.Second), "timer", duration)

	if !c.activateScene(ctx, c.cfg.ToggleScene, "timer expired turn off") {
		c.log.Warnw("first auto-off press failed, will still verify power after the wait")
	}

	if !sleepCtx(ctx, c.t.OffVerifyWait) {
		// Cancelled mid-sequence: whoever cancelled the loop owns the state now.
		return true
	}

	reading, ok := c.readPower()
	switch ClassifyPower(reading, ok, c.t.PowerThreshold) {
	case PowerOn:
		c.log.Warnw("heater still drawing power after auto-off, pressing power button again", "power", reading)
		c.activateScene(ctx, c.cfg.ToggleScene, "timer expired turn off retry")
	case PowerUnknown:
		if c.cfg.PowerSensor == "" {
			c.log.Warnw("cannot verify auto-off without a power sensor, assuming sequence complete")
		} else {
			c.log.Debugw("power sensor unavailable after auto-off, assuming sequence complete")
		}
	default:
		c.log.Debugw("power draw low after auto-off, sequence complete", "power", reading)
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.mode = heaterctl.ModeOff
	c.heatStart = time.Time{}
	c.lastModeChange = now
	c.mu.Unlock()

	c.publishState()
	c.notifyEvent(heaterctl.EventTimerOff, "auto-off timer expired", map[string]any{
		"timer_minutes": minutes,
	})
	return true
}

// maintainTemperature issues corrective presses when the measured
// temperature drifts more than one degree from the target and the power
// draw agrees with the direction of the correction. Each correction is a
// double press with a settle delay in between, compensating single-press
// misses. Missing or unavailable sensors skip the cycle: no guessing.
func (c *Controller) maintainTemperature(ctx context.Context) {
	current, tempOK := c.readTemp()
	if !tempOK {
		c.log.Debugw("temperature sensor unavailable, skipping maintenance cycle")
		return
	}
	if c.cfg.PowerSensor == "" {
		c.log.Debugw("no power sensor configured, skipping maintenance cycle")
		return
	}
	power, powerOK := c.readPower()
	if !powerOK {
		c.log.Debugw("power sensor unavailable, skipping maintenance cycle")
		return
	}

	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	diff := current - target
	switch {
	case diff < -1 && power <= c.t.PowerThreshold:
		c.log.Debugw("below dead-band and heater looks off, stepping up", "diff", diff, "power", power)
		c.doublePress(ctx, c.cfg.UpScene, "maintenance step up")
	case diff > 1 && power >= c.t.PowerThreshold:
		c.log.Debugw("above dead-band and heater looks on, stepping down", "diff", diff, "power", power)
		c.doublePress(ctx, c.cfg.DownScene, "maintenance step down")
	default:
		c.log.Debugw("within dead-band, no action", "diff", diff, "power", power)
	}
}

// doublePress presses a scene twice with a settle delay between; the second
// press only follows a successful first one.
func (c *Controller) doublePress(ctx context.Context, sceneID, action string) {
	if !c.activateScene(ctx, sceneID, action) {
		return
	}
	if !sleepCtx(ctx, c.t.SettleDelay) {
		return
	}
	c.activateScene(ctx, sceneID, action+" (second press)")
}

// --- power sensor push events ---

// enqueuePowerUpdate runs on the sensor source's goroutine. It only hands
// the update to the dispatcher so the transition itself never runs in an
// arbitrary callback context.
func (c *Controller) enqueuePowerUpdate(u SensorUpdate) {
	select {
	case <-c.quit:
	case c.events <- u:
	default:
		c.log.Debugw("power event queue full, dropping update", "value", u.Value)
	}
}

func (c *Controller) dispatchPowerEvents() {
	defer close(c.dispatchDone)
	for {
		select {
		case <-c.quit:
			return
		case u := <-c.events:
			c.handlePowerUpdate(u)
		}
	}
}

// handlePowerUpdate arms the auto-on path: somebody turned the heater on at
// the device itself while this integration believed it off. The transition
// issues no actuator command since the device is already physically on.
func (c *Controller) handlePowerUpdate(u SensorUpdate) {
	if !u.Valid {
		c.log.Debugw("power sensor went unavailable, ignoring")
		return
	}
	if c.Mode() != heaterctl.ModeOff {
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	now := time.Now().UTC()
	c.mu.Lock()
	mode, last := c.mode, c.lastModeChange
	c.mu.Unlock()

	if mode != heaterctl.ModeOff {
		return
	}
	if !last.IsZero() && now.Sub(last) < c.t.AutoOnCooldown {
		c.log.Debugw("mode changed recently, suppressing auto-on", "power", u.Value)
		return
	}
	if u.Value <= c.t.PowerThreshold {
		c.log.Debugw("power draw below threshold, no auto-on", "power", u.Value)
		return
	}

	c.log.Infow("power draw detected while off, assuming manual power-on", "power", u.Value)

	c.mu.Lock()
	c.mode = heaterctl.ModeHeat
	if c.heatStart.IsZero() {
		c.heatStart = now
	}
	c.lastModeChange = now
	c.startMonitorLocked()
	c.mu.Unlock()

	c.publishState()
	c.notifyEvent(heaterctl.EventAutoOn, "heater turned on externally", map[string]any{
		"power": u.Value,
	})
}

// --- helpers ---

func (c *Controller) activateScene(ctx context.Context, sceneID, action string) bool {
	if sceneID == "" {
		c.log.Errorw("scene binding missing", "action", action)
		return false
	}
	if err := c.scenes.Activate(ctx, sceneID); err != nil {
		c.log.Errorw("scene activation failed", "scene", sceneID, "action", action, "err", err)
		c.notifyEvent(heaterctl.EventSceneError, "scene activation failed: "+action, map[string]any{
			"scene": sceneID,
			"err":   err.Error(),
		})
		return false
	}
	return true
}

func (c *Controller) readTemp() (float64, bool) {
	return c.sensors.Read(c.cfg.TempSensor)
}

func (c *Controller) readPower() (float64, bool) {
	if c.cfg.PowerSensor == "" {
		return 0, false
	}
	return c.sensors.Read(c.cfg.PowerSensor)
}

func (c *Controller) buildState() heaterctl.HeaterState {
	c.mu.Lock()
	s := heaterctl.HeaterState{
		HeaterID:   c.cfg.ID,
		Name:       c.cfg.Name,
		Mode:       c.mode,
		TargetTemp: c.target,
		MinTemp:    c.cfg.MinTemp,
		MaxTemp:    c.cfg.MaxTemp,
		TargetStep: 1.0,
		UpdatedAt:  time.Now().UTC(),
	}
	if !c.heatStart.IsZero() {
		started := c.heatStart
		s.HeatStart = &started
	}
	c.mu.Unlock()

	if v, ok := c.readTemp(); ok {
		s.CurrentTemp = &v
	}
	if v, ok := c.readPower(); ok {
		s.PowerUsage = &v
	}
	return s
}

func (c *Controller) publishState() {
	s := c.buildState()
	recordStateMetrics(s)
	if c.publish != nil {
		c.publish(s)
	}
}

func (c *Controller) notifyEvent(eventType, description string, meta map[string]any) {
	if c.notify != nil {
		c.notify(eventType, description, meta)
	}
}
