package dialer

import (
	"encoding/json"
	"errors"
	"net/http"

	"voicecampaign_backend/platform/httpkit"
	"voicecampaign_backend/platform/phone"
	"voicecampaign_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes executor control and manual call placement.
type Handler struct {
	executor *Executor
	gateway  *Gateway
	val      *validator.Validator
}

// NewHandler creates a new dialer handler.
func NewHandler(executor *Executor, gateway *Gateway, val *validator.Validator) *Handler {
	return &Handler{executor: executor, gateway: gateway, val: val}
}

// HandleStart launches the executor loops.
// POST /api/v1/executor/start
func (h *Handler) HandleStart(c *gin.Context) {
	if err := h.executor.Start(); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			httpkit.Error(c, http.StatusConflict, "executor already running", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to start executor", nil)
		return
	}
	httpkit.OK(c, h.executor.Status())
}

// HandleStop stops the executor loops, waiting for them to drain.
// POST /api/v1/executor/stop
func (h *Handler) HandleStop(c *gin.Context) {
	if err := h.executor.Stop(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusGatewayTimeout, "executor did not stop in time", nil)
		return
	}
	httpkit.OK(c, h.executor.Status())
}

// HandleStatus reports whether the executor loops are running.
// GET /api/v1/executor/status
func (h *Handler) HandleStatus(c *gin.Context) {
	httpkit.OK(c, h.executor.Status())
}

// PlaceCallRequest is the request body for placing a one-off call.
type PlaceCallRequest struct {
	AgentID  string          `json:"agentId" validate:"required,max=64"`
	To       string          `json:"to" validate:"required,max=20"`
	From     string          `json:"from" validate:"max=20"`
	Settings json.RawMessage `json:"settings"`
}

// HandlePlaceCall places one call outside any campaign.
// POST /api/v1/calls
func (h *Handler) HandlePlaceCall(c *gin.Context) {
	var req PlaceCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}
	to := phone.NormalizeE164(req.To)

	record, err := h.gateway.PlaceDirectCall(c.Request.Context(), DirectCallRequest{
		AgentID:          req.AgentID,
		To:               to,
		From:             req.From,
		SettingsOverride: req.Settings,
	})
	if err != nil {
		httpkit.Error(c, http.StatusBadGateway, "call placement failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, record)
}
