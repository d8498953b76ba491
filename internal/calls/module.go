package calls

import (
	"voicecampaign_backend/internal/events"
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the calls bounded context module implementing http.Module.
type Module struct {
	handler    *Handler
	webhooks   *WebhookHandler
	service    *Service
	repository *Repository
}

// NewModule creates and initializes the calls module with all its dependencies.
// sessions, archive and resolver may be nil when the corresponding
// integration is not configured.
func NewModule(pool *pgxpool.Pool, sessions SessionAPI, archive RecordingArchive, resolver ContactResolver, eventBus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, sessions, archive, resolver, eventBus, log)

	return &Module{
		handler:    NewHandler(service),
		webhooks:   NewWebhookHandler(service, log),
		service:    service,
		repository: repo,
	}
}

// Service exposes call operations to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Repository exposes call persistence to the dialer.
func (m *Module) Repository() *Repository {
	return m.repository
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calls"
}

// RegisterRoutes mounts call routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/calls")
	group.GET("", m.handler.HandleList)
	group.GET("/:callID", m.handler.HandleGet)
	group.GET("/:callID/transcript", m.handler.HandleTranscript)
	group.GET("/:callID/recording", m.handler.HandleRecording)
	group.GET("/:callID/summary", m.handler.HandleSummary)
	group.POST("/:callID/analyze", m.handler.HandleAnalyze)

	telephony := ctx.Webhooks.Group("/telephony")
	telephony.GET("/answer", m.webhooks.HandleAnswer)
	telephony.POST("/hangup", m.webhooks.HandleHangup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
