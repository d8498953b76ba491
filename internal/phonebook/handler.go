package phonebook

import (
	"net/http"
	"strconv"

	"voicecampaign_backend/platform/httpkit"
	"voicecampaign_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles phonebook HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new phonebook handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// SaveNumberRequest is the request body for saving one number.
type SaveNumberRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
	Label       string `json:"label" validate:"max=255"`
	NumberType  string `json:"numberType" validate:"required,oneof=recipient from"`
}

// BulkImportRequest is the request body for importing many numbers.
type BulkImportRequest struct {
	PhoneNumbers []string `json:"phoneNumbers" validate:"required,min=1,max=10000"`
	NumberType   string   `json:"numberType" validate:"required,oneof=recipient from"`
}

// UpdateUsageRequest marks a number as recently used.
type UpdateUsageRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
}

// HandleSave saves a single number.
// POST /api/v1/phone-numbers
func (h *Handler) HandleSave(c *gin.Context) {
	var req SaveNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	saved, err := h.service.Save(c.Request.Context(), req.PhoneNumber, req.Label, req.NumberType)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// HandleBulkImport imports many numbers of one type.
// POST /api/v1/phone-numbers/bulk-import
func (h *Handler) HandleBulkImport(c *gin.Context) {
	var req BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	imported, err := h.service.BulkImport(c.Request.Context(), req.PhoneNumbers, req.NumberType)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"imported": imported, "submitted": len(req.PhoneNumbers)})
}

// HandleList lists saved numbers, optionally filtered via ?type=.
// GET /api/v1/phone-numbers
func (h *Handler) HandleList(c *gin.Context) {
	numbers, err := h.service.List(c.Request.Context(), c.Query("type"))
	if httpkit.HandleError(c, err) {
		return
	}
	if numbers == nil {
		numbers = []SavedNumber{}
	}
	httpkit.OK(c, numbers)
}

// HandleLookup finds a saved number by value.
// GET /api/v1/phone-numbers/by-number/:number
func (h *Handler) HandleLookup(c *gin.Context) {
	n, err := h.service.Lookup(c.Request.Context(), c.Param("number"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, n)
}

// HandleUpdateUsage bumps a number's last-used timestamp.
// POST /api/v1/phone-numbers/update-usage
func (h *Handler) HandleUpdateUsage(c *gin.Context) {
	var req UpdateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	if httpkit.HandleError(c, h.service.MarkUsed(c.Request.Context(), req.PhoneNumber)) {
		return
	}
	httpkit.OK(c, gin.H{"updated": true})
}

// HandleDelete removes a saved number.
// DELETE /api/v1/phone-numbers/:id
func (h *Handler) HandleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid phone number id", nil)
		return
	}
	if httpkit.HandleError(c, h.service.Delete(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}
