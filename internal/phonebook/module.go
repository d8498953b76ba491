package phonebook

import (
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the phonebook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the phonebook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, log)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		service: service,
	}
}

// Service exposes phone number operations to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "phonebook"
}

// RegisterRoutes mounts phonebook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/phone-numbers")
	group.POST("", m.handler.HandleSave)
	group.GET("", m.handler.HandleList)
	group.POST("/bulk-import", m.handler.HandleBulkImport)
	group.GET("/by-number/:number", m.handler.HandleLookup)
	group.POST("/update-usage", m.handler.HandleUpdateUsage)
	group.DELETE("/:id", m.handler.HandleDelete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
