package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"heaterctl"
	"heaterctl/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeFilter prepares query parameters and validates the time range.
func normalizeFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	return repository.EventFilter{
		HeaterID: strings.TrimSpace(f.HeaterID),
		From:     from,
		To:       to,
		Type:     strings.TrimSpace(strings.ToUpper(f.Type)),
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]heaterctl.HeaterEvent, error) {
	filter, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}
