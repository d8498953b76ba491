package calls

import (
	"net/http"
	"strconv"

	"voicecampaign_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles call history and artifact HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new calls handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleList lists recent calls, optionally filtered via ?campaignId=.
// GET /api/v1/calls
func (h *Handler) HandleList(c *gin.Context) {
	var campaignID *int64
	if raw := c.Query("campaignId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
			return
		}
		campaignID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.service.List(c.Request.Context(), campaignID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if records == nil {
		records = []CallRecord{}
	}
	httpkit.OK(c, records)
}

// HandleGet returns a single call record.
// GET /api/v1/calls/:callID
func (h *Handler) HandleGet(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

// HandleTranscript returns the call transcript, fetching it from the
// voice AI provider on first access.
// GET /api/v1/calls/:callID/transcript
func (h *Handler) HandleTranscript(c *gin.Context) {
	transcript, err := h.service.FetchTranscript(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "application/json", transcript)
}

// HandleRecording returns a URL for the call recording.
// GET /api/v1/calls/:callID/recording
func (h *Handler) HandleRecording(c *gin.Context) {
	url, err := h.service.FetchRecording(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"recordingUrl": url})
}

// HandleSummary returns the call summary.
// GET /api/v1/calls/:callID/summary
func (h *Handler) HandleSummary(c *gin.Context) {
	summary, err := h.service.FetchSummary(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"summary": summary})
}

// HandleAnalyze runs one artifact collection pass for a call and
// returns the accumulated analysis status.
// POST /api/v1/calls/:callID/analyze
func (h *Handler) HandleAnalyze(c *gin.Context) {
	status, err := h.service.CollectArtifacts(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}
