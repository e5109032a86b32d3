package service

import (
	"context"
	"time"

	"heaterctl"
	"heaterctl/internal/climate"
	"heaterctl/internal/config"
	"heaterctl/internal/logger"
	"heaterctl/internal/mqtt"
	"heaterctl/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Climate exposes the control operations of the configured heaters.
type Climate interface {
	SetMode(ctx context.Context, heaterID string, mode heaterctl.HVACMode) error
	SetTemperature(ctx context.Context, heaterID string, value float64) error
	UpdateOptions(heaterID string, opts config.HeaterOptions) error
}

// Monitoring exposes read-only heater state snapshots.
type Monitoring interface {
	GetState(heaterID string) (heaterctl.HeaterState, error)
	ListStates() []heaterctl.HeaterState
	GetOptions(heaterID string) (config.HeaterOptions, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]heaterctl.HeaterEvent, error)
}

// LogFilter supports history filtering by heater, time range and type.
type LogFilter struct {
	HeaterID string
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", or one of the heaterctl.Event* types
}

// Service aggregates all sub-services.
type Service struct {
	Climate
	Monitoring
	EventLog
	Authorization

	climateSvc *ClimateService
}

// NewService wires the repository layer, the message bus and the validated
// heater definitions into concrete services.
func NewService(heaters []config.Heater, opts *config.Options, bus mqtt.Bus, repos *repository.Repository, t climate.Timings, jwtKey string, log *logger.Logger) *Service {
	climateSvc := NewClimateService(heaters, opts, bus, repos.StateRepo, repos.EventRepo, t, log)
	return &Service{
		Climate:       climateSvc,
		Monitoring:    climateSvc,
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, jwtKey),
		climateSvc:    climateSvc,
	}
}

// Start restores and starts every heater controller.
func (s *Service) Start(ctx context.Context) {
	s.climateSvc.Start(ctx)
}

// Close stops all controllers, waiting for their background loops.
func (s *Service) Close() {
	s.climateSvc.Close()
}
