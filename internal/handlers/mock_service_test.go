package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"

	"heaterctl"
	"heaterctl/internal/config"
	"heaterctl/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockClimate struct {
	setModeErr error
	setTempErr error
	updOptsErr error

	lastModeHeater string
	lastMode       heaterctl.HVACMode
	lastTempHeater string
	lastTemp       float64
	lastOptsHeater string
	lastOpts       config.HeaterOptions
}

func (m *mockClimate) SetMode(_ context.Context, heaterID string, mode heaterctl.HVACMode) error {
	m.lastModeHeater = heaterID
	m.lastMode = mode
	return m.setModeErr
}
func (m *mockClimate) SetTemperature(_ context.Context, heaterID string, value float64) error {
	m.lastTempHeater = heaterID
	m.lastTemp = value
	return m.setTempErr
}
func (m *mockClimate) UpdateOptions(heaterID string, opts config.HeaterOptions) error {
	m.lastOptsHeater = heaterID
	m.lastOpts = opts
	return m.updOptsErr
}

type mockMonitoring struct {
	states map[string]heaterctl.HeaterState
	order  []string
	opts   map[string]config.HeaterOptions
	err    error
}

func (m *mockMonitoring) GetState(heaterID string) (heaterctl.HeaterState, error) {
	if m.err != nil {
		return heaterctl.HeaterState{}, m.err
	}
	st, ok := m.states[heaterID]
	if !ok {
		return heaterctl.HeaterState{}, service.ErrUnknownHeater
	}
	return st, nil
}
func (m *mockMonitoring) ListStates() []heaterctl.HeaterState {
	out := make([]heaterctl.HeaterState, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.states[id])
	}
	return out
}
func (m *mockMonitoring) GetOptions(heaterID string) (config.HeaterOptions, error) {
	o, ok := m.opts[heaterID]
	if !ok {
		return config.HeaterOptions{}, service.ErrUnknownHeater
	}
	return o, nil
}

type mockEventLog struct {
	resp       []heaterctl.HeaterEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]heaterctl.HeaterEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doRequest(router *gin.Engine, method, path, body string, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
