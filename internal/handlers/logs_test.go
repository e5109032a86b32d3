package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"heaterctl"
	"heaterctl/internal/service"
)

func logsServices(log *mockEventLog) *service.Service {
	return &service.Service{
		Climate:       &mockClimate{},
		Monitoring:    twoHeaterMonitoring(),
		EventLog:      log,
		Authorization: &mockAuth{parseID: 1},
	}
}

func TestGetLogs_NoFilters(t *testing.T) {
	log := &mockEventLog{resp: []heaterctl.HeaterEvent{
		{EventID: "1", HeaterID: "living_room", Type: "AUTO_ON"},
		{EventID: "2", HeaterID: "bedroom", Type: "TIMER_OFF"},
	}}
	router := newTestRouter(logsServices(log))

	w := doRequest(router, http.MethodGet, "/api/v1/logs/", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count  int                     `json:"count"`
		Events []heaterctl.HeaterEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Count != 2 || len(resp.Events) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !log.lastFilter.From.IsZero() || !log.lastFilter.To.IsZero() {
		t.Fatalf("expected zero time bounds, got %+v", log.lastFilter)
	}
}

func TestGetLogs_FilterForwarding(t *testing.T) {
	log := &mockEventLog{}
	router := newTestRouter(logsServices(log))

	w := doRequest(router, http.MethodGet,
		"/api/v1/logs/?heater=living_room&type=auto_on&from=2026-08-01T10:00:00Z&to=2026-08-02T10:00:00Z", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	f := log.lastFilter
	if f.HeaterID != "living_room" {
		t.Fatalf("heater not forwarded: %+v", f)
	}
	if f.Type != "AUTO_ON" {
		t.Fatalf("type not normalized: %+v", f)
	}
	wantFrom := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	if !f.From.Equal(wantFrom) || !f.To.Equal(wantTo) {
		t.Fatalf("time bounds not forwarded: %+v", f)
	}
}

func TestGetLogs_DateOnlyToIsEndOfDay(t *testing.T) {
	log := &mockEventLog{}
	router := newTestRouter(logsServices(log))

	w := doRequest(router, http.MethodGet, "/api/v1/logs/?to=2026-08-15", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	endOfDay := time.Date(2026, 8, 15, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !log.lastFilter.To.Equal(endOfDay) {
		t.Fatalf("expected end-of-day %v, got %v", endOfDay, log.lastFilter.To)
	}
}

func TestGetLogs_InvalidTimes(t *testing.T) {
	router := newTestRouter(logsServices(&mockEventLog{}))

	for _, q := range []string{
		"?from=yesterday",
		"?to=15/08/2026",
		"?from=2026-08-02&to=2026-08-01",
	} {
		w := doRequest(router, http.MethodGet, "/api/v1/logs/"+q, "", "tok")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", q, w.Code)
		}
	}
}
