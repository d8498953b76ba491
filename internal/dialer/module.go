package dialer

import (
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/platform/validator"
)

// Module is the dialer bounded context module implementing http.Module.
type Module struct {
	handler  *Handler
	executor *Executor
	gateway  *Gateway
}

// NewModule wires the dialer's HTTP surface around an already
// constructed executor and gateway.
func NewModule(executor *Executor, gateway *Gateway, val *validator.Validator) *Module {
	return &Module{
		handler:  NewHandler(executor, gateway, val),
		executor: executor,
		gateway:  gateway,
	}
}

// Executor exposes the supervisor for lifecycle management.
func (m *Module) Executor() *Executor {
	return m.executor
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dialer"
}

// RegisterRoutes mounts executor control and manual call placement.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/executor")
	group.POST("/start", m.handler.HandleStart)
	group.POST("/stop", m.handler.HandleStop)
	group.GET("/status", m.handler.HandleStatus)

	ctx.Protected.POST("/calls", m.handler.HandlePlaceCall)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
