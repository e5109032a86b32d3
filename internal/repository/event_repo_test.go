package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"heaterctl"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestEventAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	// Generated id and timestamp string are unknown; match shape and the
	// normalized type.
	mock.ExpectExec(regexp.QuoteMeta(`
			INSERT INTO heater_events (id, heater_id, occurred_at, type, message, meta)
			VALUES (?, ?, ?, ?, ?, ?)
		`)).
		WithArgs(sqlmock.AnyArg(), "living_room", sqlmock.AnyArg(),
			"AUTO_ON", "heater turned on externally",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), heaterctl.HeaterEvent{
		// EventID empty -> repo generates
		// OccurredAt zero -> repo sets UTC now
		HeaterID:    "living_room",
		Type:        "  auto_on ",
		Description: "heater turned on externally",
		Metadata:    map[string]any{"power": 25.0},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec("INSERT INTO heater_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), heaterctl.HeaterEvent{
		HeaterID:    "h1",
		Type:        "MODE_CHANGE",
		Description: "x",
	})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"power": 25.0})

	rows := sqlmock.NewRows([]string{"id", "heater_id", "occurred_at", "type", "message", "meta"}).
		AddRow("1", "living_room", now, "AUTO_ON", "m1", string(js)).
		AddRow("2", "bedroom", now.Add(time.Hour), "TIMER_OFF", "m2", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, heater_id, occurred_at, type, message, meta FROM heater_events ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	if got[0].EventID != "1" || got[1].EventID != "2" {
		t.Fatalf("unexpected ids: %v, %v", got[0].EventID, got[1].EventID)
	}
	if got[0].HeaterID != "living_room" || got[1].HeaterID != "bedroom" {
		t.Fatalf("unexpected heater ids: %v, %v", got[0].HeaterID, got[1].HeaterID)
	}
	// metadata parsed
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b1), string(js))
	}
	// nil meta stays nil
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	from := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, heater_id, occurred_at, type, message, meta FROM heater_events WHERE heater_id = ? AND occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC`

	rows := sqlmock.NewRows([]string{"id", "heater_id", "occurred_at", "type", "message", "meta"}).
		AddRow("2", "living_room", from, "SCENE_ERROR", "b", nil).
		AddRow("3", "living_room", to, "SCENE_ERROR", "c", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("living_room", from.UTC(), to.UTC(), "SCENE_ERROR").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{
		HeaterID: "living_room",
		From:     from,
		To:       to,
		Type:     " scene_error ", // normalized to SCENE_ERROR
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "2" || got[1].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventList_ScanError(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	rows := sqlmock.NewRows([]string{"id", "heater_id", "occurred_at", "type", "message", "meta"}).
		// occurred_at wrong type to force scan error
		AddRow("x", "h1", 123, "AUTO_ON", "msg", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, heater_id, occurred_at, type, message, meta FROM heater_events ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	_, err := repo.List(ctx(t), EventFilter{})
	if err == nil {
		t.Fatalf("expected scan error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
