package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"heaterctl"
	"heaterctl/internal/climate"
	"heaterctl/internal/config"
	"heaterctl/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK         = "ok"
	statusModeSet    = "mode_set"
	statusTempSet    = "temperature_set"
	statusOptionsSet = "options_set"

	errGetState = "failed to load heater state"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include the heater's current state (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, heaterID, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if st, err := h.services.Monitoring.GetState(heaterID); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// controlStatusCode maps control-layer errors to HTTP codes.
func controlStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownHeater):
		return http.StatusNotFound
	case errors.Is(err, climate.ErrUnsupportedMode),
		errors.Is(err, climate.ErrTemperatureOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Request DTO for setting the HVAC mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // off | heat
}

// Request DTO for setting the target temperature.
type temperatureRequest struct {
	Temperature float64 `json:"temperature" binding:"required"`
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Mode to set. Allowed: off, heat
	Mode string `json:"mode" example:"heat"`
}

// SetTemperatureRequest is an exported model for Swagger docs.
type SetTemperatureRequest struct {
	// Target temperature in Celsius, within the heater's configured bounds
	Temperature float64 `json:"temperature" example:"21.5"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List heater states
// @Tags         heaters
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, heaters"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/heaters [get]
// @Security     BearerAuth
func (h *Handler) listHeaters(c *gin.Context) {
	states := h.services.Monitoring.ListStates()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(states),
		"heaters": states,
	})
}

// @Summary      Get heater state
// @Tags         heaters
// @Produce      json
// @Param        id   path      string  true  "Heater id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/heaters/{id}/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Param("id"))
	if err != nil {
		h.logAndJSONError(c, controlStatusCode(err), errGetState, "heater_get_state_failed", err, "heater", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Set HVAC mode
// @Description  Switching to heat may press the power button depending on the inferred power state; switching to off always presses it.
// @Tags         heaters
// @Accept       json
// @Produce      json
// @Param        id    path   string          true  "Heater id"
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/heaters/{id}/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	heaterID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.services.Climate.SetMode(ctx, heaterID, heaterctl.HVACMode(req.Mode)); err != nil {
		if h.log != nil {
			h.log.Errorw("heater_set_mode_failed", "err", err, "heater", heaterID, "mode", req.Mode)
		}
		c.JSON(controlStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, heaterID, statusModeSet, gin.H{"mode": req.Mode})
}

// @Summary      Set target temperature
// @Description  Drives the heater's remote one degree per press; on a partial failure the achieved value is kept.
// @Tags         heaters
// @Accept       json
// @Produce      json
// @Param        id    path   string                 true  "Heater id"
// @Param        body  body   SetTemperatureRequest  true  "Temperature payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/heaters/{id}/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	heaterID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.services.Climate.SetTemperature(ctx, heaterID, req.Temperature); err != nil {
		if h.log != nil {
			h.log.Errorw("heater_set_temperature_failed", "err", err, "heater", heaterID, "temperature", req.Temperature)
		}
		c.JSON(controlStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, heaterID, statusTempSet, gin.H{"temperature": req.Temperature})
}

// @Summary      Get heater options
// @Tags         heaters
// @Produce      json
// @Param        id   path      string  true  "Heater id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/heaters/{id}/options [get]
// @Security     BearerAuth
func (h *Handler) getOptions(c *gin.Context) {
	opts, err := h.services.Monitoring.GetOptions(c.Param("id"))
	if err != nil {
		c.JSON(controlStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, opts)
}

// @Summary      Update heater options
// @Description  Applied live: the reconciliation loop reads the timer on every cycle.
// @Tags         heaters
// @Accept       json
// @Produce      json
// @Param        id    path   string                true  "Heater id"
// @Param        body  body   config.HeaterOptions  true  "Options payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/heaters/{id}/options [put]
// @Security     BearerAuth
func (h *Handler) updateOptions(c *gin.Context) {
	var opts config.HeaterOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	heaterID := c.Param("id")
	if err := h.services.Climate.UpdateOptions(heaterID, opts); err != nil {
		// Anything but an unknown id is a validation problem.
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrUnknownHeater) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatusAndState(c, heaterID, statusOptionsSet, gin.H{})
}
