package agents

import (
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the agents bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the agents module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, log)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		service: service,
	}
}

// Service exposes agent lookups to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "agents"
}

// RegisterRoutes mounts agent routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/agents")
	group.POST("", m.handler.HandleCreate)
	group.GET("", m.handler.HandleList)
	group.GET("/:agentID", m.handler.HandleGet)
	group.PUT("/:agentID", m.handler.HandleUpdate)
	group.DELETE("/:agentID", m.handler.HandleDelete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
