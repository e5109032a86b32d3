package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heaterctl"
	"heaterctl/internal/climate"
	"heaterctl/internal/config"
	"heaterctl/internal/logger"
	"heaterctl/internal/mqtt"
	"heaterctl/internal/repository"
)

// ErrUnknownHeater is returned for operations on a heater id that is not
// configured.
var ErrUnknownHeater = errors.New("unknown heater")

// persistTimeout bounds the best-effort state save on every publish.
const persistTimeout = 5 * time.Second

// ClimateService owns one controller per configured heater and fans
// operations out to them. Controllers never coordinate with each other.
type ClimateService struct {
	controllers map[string]*climate.Controller
	order       []string // configured order, for stable listings

	options   *config.Options
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	bus       mqtt.Bus
	log       *logger.Logger
}

var (
	_ Climate    = (*ClimateService)(nil)
	_ Monitoring = (*ClimateService)(nil)
)

// NewClimateService builds the controllers. Each controller publishes its
// state through a closure that persists the restoration snapshot, mirrors
// the state to the bus, and appends noteworthy events to the log.
func NewClimateService(heaters []config.Heater, opts *config.Options, bus mqtt.Bus, stateRepo repository.StateRepo, eventRepo repository.EventRepo, t climate.Timings, log *logger.Logger) *ClimateService {
	s := &ClimateService{
		controllers: make(map[string]*climate.Controller, len(heaters)),
		options:     opts,
		stateRepo:   stateRepo,
		eventRepo:   eventRepo,
		bus:         bus,
		log:         log,
	}

	for _, h := range heaters {
		heaterID := h.ID
		cfg := climate.Config{
			ID:          h.ID,
			Name:        h.Name,
			ToggleScene: h.ToggleScene,
			UpScene:     h.UpScene,
			DownScene:   h.DownScene,
			TempSensor:  h.TempSensor,
			PowerSensor: h.PowerSensor,
			MinTemp:     h.MinTemp,
			MaxTemp:     h.MaxTemp,
			DefaultTemp: h.DefaultTemp,
		}
		deps := climate.Deps{
			Scenes:  bus,
			Sensors: bus,
			Options: opts,
			Publish: func(st heaterctl.HeaterState) { s.onStatePublished(st) },
			Notify: func(eventType, description string, meta map[string]any) {
				s.appendEvent(heaterID, eventType, description, meta)
			},
			Log: log,
		}
		s.controllers[heaterID] = climate.New(cfg, deps, t)
		s.order = append(s.order, heaterID)
	}
	return s
}

// Start loads the persisted snapshot of each heater and starts its
// controller. A failed load only costs the restoration, never the start.
func (s *ClimateService) Start(ctx context.Context) {
	for _, id := range s.order {
		restored, err := s.stateRepo.Load(ctx, id)
		if err != nil {
			s.log.Errorw("failed to load persisted heater state, starting fresh", "heater", id, "err", err)
			restored = nil
		}
		s.controllers[id].Start(restored)
	}
}

// Close stops every controller.
func (s *ClimateService) Close() {
	for _, id := range s.order {
		s.controllers[id].Close()
	}
}

func (s *ClimateService) controller(heaterID string) (*climate.Controller, error) {
	c, ok := s.controllers[heaterID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeater, heaterID)
	}
	return c, nil
}

func (s *ClimateService) SetMode(ctx context.Context, heaterID string, mode heaterctl.HVACMode) error {
	c, err := s.controller(heaterID)
	if err != nil {
		return err
	}
	return c.SetMode(ctx, mode)
}

func (s *ClimateService) SetTemperature(ctx context.Context, heaterID string, value float64) error {
	c, err := s.controller(heaterID)
	if err != nil {
		return err
	}
	return c.SetTemperature(ctx, value)
}

func (s *ClimateService) UpdateOptions(heaterID string, opts config.HeaterOptions) error {
	if _, err := s.controller(heaterID); err != nil {
		return err
	}
	if err := s.options.Update(heaterID, opts); err != nil {
		return err
	}
	s.log.Infow("heater options updated", "heater", heaterID, "timer_minutes", opts.TimerMinutes)
	s.appendEvent(heaterID, heaterctl.EventOptionsChange, "options updated", map[string]any{
		"timer_minutes":      opts.TimerMinutes,
		"remember_last_temp": opts.RememberLastTemp,
	})
	return nil
}

func (s *ClimateService) GetState(heaterID string) (heaterctl.HeaterState, error) {
	c, err := s.controller(heaterID)
	if err != nil {
		return heaterctl.HeaterState{}, err
	}
	return c.State(), nil
}

func (s *ClimateService) ListStates() []heaterctl.HeaterState {
	out := make([]heaterctl.HeaterState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.controllers[id].State())
	}
	return out
}

func (s *ClimateService) GetOptions(heaterID string) (config.HeaterOptions, error) {
	opts, ok := s.options.Get(heaterID)
	if !ok {
		return config.HeaterOptions{}, fmt.Errorf("%w: %q", ErrUnknownHeater, heaterID)
	}
	return opts, nil
}

// onStatePublished persists the restoration snapshot and mirrors the state
// to the bus. Both are best-effort: the controller's state is authoritative
// and a failed side channel must never fail a control operation.
func (s *ClimateService) onStatePublished(st heaterctl.HeaterState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.stateRepo.Save(ctx, st); err != nil {
		s.log.Errorw("failed to persist heater state", "heater", st.HeaterID, "err", err)
	}

	payload, err := json.Marshal(st)
	if err != nil {
		s.log.Errorw("failed to marshal heater state", "heater", st.HeaterID, "err", err)
		return
	}
	if err := s.bus.PublishState(st.HeaterID, payload); err != nil {
		s.log.Errorw("failed to mirror heater state to bus", "heater", st.HeaterID, "err", err)
	}
}

func (s *ClimateService) appendEvent(heaterID, eventType, description string, meta map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	ev := heaterctl.HeaterEvent{
		EventID:     uuid.NewString(),
		HeaterID:    heaterID,
		OccurredAt:  time.Now().UTC(),
		Type:        eventType,
		Description: description,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Errorw("failed to append heater event", "heater", heaterID, "type", eventType, "err", err)
	}
}
