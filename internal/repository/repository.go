package repository

import (
	"context"
	"database/sql"
	"time"

	"heaterctl"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*heaterctl.User, error)
}

// StateRepo persists the per-heater state snapshot used for restoration
// across restarts (mode and target temperature only).
type StateRepo interface {
	Save(ctx context.Context, s heaterctl.HeaterState) error
	Load(ctx context.Context, heaterID string) (*heaterctl.HeaterState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e heaterctl.HeaterEvent) error
	List(ctx context.Context, f EventFilter) ([]heaterctl.HeaterEvent, error)
}

// EventFilter narrows an event listing; zero values mean "no constraint".
type EventFilter struct {
	HeaterID string
	From     time.Time
	To       time.Time
	Type     string
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
