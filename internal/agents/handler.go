package agents

import (
	"encoding/json"
	"net/http"

	"voicecampaign_backend/platform/httpkit"
	"voicecampaign_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles agent HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new agents handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// AgentRequest is the request body for creating or updating an agent.
type AgentRequest struct {
	Name            string          `json:"name" validate:"required,min=1,max=255"`
	SystemPrompt    string          `json:"systemPrompt" validate:"required"`
	InitialMessages json.RawMessage `json:"initialMessages"`
	Settings        json.RawMessage `json:"settings"`
	FromNumber      string          `json:"fromNumber" validate:"max=20"`
}

func (h *Handler) bindAndValidate(c *gin.Context, req *AgentRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return false
	}
	return true
}

// HandleCreate creates an agent.
// POST /api/v1/agents
func (h *Handler) HandleCreate(c *gin.Context) {
	var req AgentRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	agent, err := h.service.Create(c.Request.Context(), CreateAgentInput{
		Name:            req.Name,
		SystemPrompt:    req.SystemPrompt,
		InitialMessages: req.InitialMessages,
		Settings:        req.Settings,
		FromNumber:      req.FromNumber,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, agent)
}

// HandleList lists all agents.
// GET /api/v1/agents
func (h *Handler) HandleList(c *gin.Context) {
	agents, err := h.service.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	if agents == nil {
		agents = []Agent{}
	}
	httpkit.OK(c, agents)
}

// HandleGet retrieves one agent.
// GET /api/v1/agents/:agentID
func (h *Handler) HandleGet(c *gin.Context) {
	agent, err := h.service.Get(c.Request.Context(), c.Param("agentID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, agent)
}

// HandleUpdate updates an agent.
// PUT /api/v1/agents/:agentID
func (h *Handler) HandleUpdate(c *gin.Context) {
	var req AgentRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	agent, err := h.service.Update(c.Request.Context(), c.Param("agentID"), CreateAgentInput{
		Name:            req.Name,
		SystemPrompt:    req.SystemPrompt,
		InitialMessages: req.InitialMessages,
		Settings:        req.Settings,
		FromNumber:      req.FromNumber,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, agent)
}

// HandleDelete removes an agent.
// DELETE /api/v1/agents/:agentID
func (h *Handler) HandleDelete(c *gin.Context) {
	if httpkit.HandleError(c, h.service.Delete(c.Request.Context(), c.Param("agentID"))) {
		return
	}
	c.Status(http.StatusNoContent)
}
