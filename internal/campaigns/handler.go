package campaigns

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"voicecampaign_backend/platform/httpkit"
	"voicecampaign_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest    = "invalid request body"
	errValidation        = "validation error"
	errInvalidCampaignID = "invalid campaign id"
	errInvalidContactID  = "invalid contact id"
)

// Handler handles campaign HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new campaigns handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

func (h *Handler) campaignID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidCampaignID, nil)
		return 0, false
	}
	return id, true
}

// CampaignRequest is the request body for creating or updating a campaign.
type CampaignRequest struct {
	Name            string          `json:"name" validate:"required,min=1,max=255"`
	AssignedAgentID string          `json:"assignedAgentId" validate:"required"`
	FromNumber      string          `json:"fromNumber" validate:"max=20"`
	ScheduleAt      *time.Time      `json:"scheduleAt"`
	Config          json.RawMessage `json:"config"`
	FileName        string          `json:"fileName" validate:"max=255"`
}

// ContactRequest is one contact in a bulk add.
type ContactRequest struct {
	Name  string          `json:"name" validate:"max=255"`
	Phone string          `json:"phone" validate:"required,max=20"`
	Extra json.RawMessage `json:"extra"`
}

// AddContactsRequest is the bulk contact payload.
type AddContactsRequest struct {
	Contacts []ContactRequest `json:"contacts" validate:"required,min=1,max=10000,dive"`
}

// StatusRequest commands a lifecycle transition.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=created scheduled running paused"`
}

// ScheduleRequest stamps a scheduled start time.
type ScheduleRequest struct {
	ScheduleAt time.Time `json:"scheduleAt" validate:"required"`
}

// UpdateContactRequest edits one contact.
type UpdateContactRequest struct {
	Name  string `json:"name" validate:"max=255"`
	Phone string `json:"phone" validate:"max=20"`
}

// HandleCreate creates a campaign.
// POST /api/v1/campaigns
func (h *Handler) HandleCreate(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), CreateCampaignInput{
		Name:            req.Name,
		AssignedAgentID: req.AssignedAgentID,
		FromNumber:      req.FromNumber,
		ScheduleAt:      req.ScheduleAt,
		Config:          req.Config,
		FileName:        req.FileName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// HandleList lists all campaigns.
// GET /api/v1/campaigns
func (h *Handler) HandleList(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	if list == nil {
		list = []Campaign{}
	}
	httpkit.OK(c, list)
}

// HandleGet retrieves one campaign.
// GET /api/v1/campaigns/:id
func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	campaign, err := h.service.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// HandleUpdate edits a campaign.
// PUT /api/v1/campaigns/:id
func (h *Handler) HandleUpdate(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), id, CreateCampaignInput{
		Name:            req.Name,
		AssignedAgentID: req.AssignedAgentID,
		FromNumber:      req.FromNumber,
		Config:          req.Config,
		FileName:        req.FileName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// HandleDelete removes a campaign.
// DELETE /api/v1/campaigns/:id
func (h *Handler) HandleDelete(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.service.Delete(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleAddContacts bulk-adds contacts.
// POST /api/v1/campaigns/:id/contacts
func (h *Handler) HandleAddContacts(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req AddContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	inputs := make([]ContactInput, 0, len(req.Contacts))
	for _, contact := range req.Contacts {
		inputs = append(inputs, ContactInput{
			Name:  contact.Name,
			Phone: contact.Phone,
			Extra: contact.Extra,
		})
	}

	added, err := h.service.AddContacts(c.Request.Context(), id, inputs)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": added, "submitted": len(req.Contacts)})
}

// HandleListContacts lists a campaign's contacts.
// GET /api/v1/campaigns/:id/contacts
func (h *Handler) HandleListContacts(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	contacts, err := h.service.ListContacts(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if contacts == nil {
		contacts = []Contact{}
	}
	httpkit.OK(c, contacts)
}

// HandleUpdateContact edits one contact.
// PUT /api/v1/campaigns/:id/contacts/:contactID
func (h *Handler) HandleUpdateContact(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	contactID, err := strconv.ParseInt(c.Param("contactID"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidContactID, nil)
		return
	}

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	contact, svcErr := h.service.UpdateContact(c.Request.Context(), id, contactID, req.Name, req.Phone)
	if httpkit.HandleError(c, svcErr) {
		return
	}
	httpkit.OK(c, contact)
}

// HandleDeleteContact removes one contact.
// DELETE /api/v1/campaigns/:id/contacts/:contactID
func (h *Handler) HandleDeleteContact(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	contactID, err := strconv.ParseInt(c.Param("contactID"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidContactID, nil)
		return
	}
	if httpkit.HandleError(c, h.service.DeleteContact(c.Request.Context(), id, contactID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSetStatus commands a lifecycle transition.
// PUT /api/v1/campaigns/:id/status
func (h *Handler) HandleSetStatus(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	campaign, err := h.service.SetStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// HandleSchedule stamps a scheduled start time.
// POST /api/v1/campaigns/:id/schedule
func (h *Handler) HandleSchedule(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	campaign, err := h.service.Schedule(c.Request.Context(), id, req.ScheduleAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// HandleStats returns the live status breakdown.
// GET /api/v1/campaigns/:id/stats
func (h *Handler) HandleStats(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	stats, err := h.service.GetStats(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// HandleNextContact previews the next contact the dialer would pick.
// GET /api/v1/campaigns/:id/next-contact
func (h *Handler) HandleNextContact(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	contact, err := h.service.NextContact(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if contact == nil {
		httpkit.OK(c, gin.H{"contact": nil})
		return
	}
	httpkit.OK(c, gin.H{"contact": contact})
}
