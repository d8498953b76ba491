package campaigns

import (
	"voicecampaign_backend/internal/events"
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the campaigns bounded context module implementing http.Module.
type Module struct {
	handler    *Handler
	service    *Service
	repository *Repository
}

// NewModule creates and initializes the campaigns module with all its dependencies.
func NewModule(pool *pgxpool.Pool, agents AgentReader, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, agents, eventBus, log)
	handler := NewHandler(service, val)

	return &Module{
		handler:    handler,
		service:    service,
		repository: repo,
	}
}

// Service exposes campaign operations to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Repository exposes campaign persistence to the dialer.
func (m *Module) Repository() *Repository {
	return m.repository
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// RegisterRoutes mounts campaign routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/campaigns")
	group.POST("", m.handler.HandleCreate)
	group.GET("", m.handler.HandleList)
	group.GET("/:id", m.handler.HandleGet)
	group.PUT("/:id", m.handler.HandleUpdate)
	group.DELETE("/:id", m.handler.HandleDelete)
	group.POST("/:id/contacts", m.handler.HandleAddContacts)
	group.GET("/:id/contacts", m.handler.HandleListContacts)
	group.PUT("/:id/contacts/:contactID", m.handler.HandleUpdateContact)
	group.DELETE("/:id/contacts/:contactID", m.handler.HandleDeleteContact)
	group.PUT("/:id/status", m.handler.HandleSetStatus)
	group.POST("/:id/schedule", m.handler.HandleSchedule)
	group.GET("/:id/stats", m.handler.HandleStats)
	group.GET("/:id/next-contact", m.handler.HandleNextContact)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
