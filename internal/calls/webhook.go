package calls

import (
	"encoding/xml"
	"net/http"
	"strconv"

	"voicecampaign_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler serves the unauthenticated callbacks the telephony
// provider invokes during a call's lifetime.
type WebhookHandler struct {
	service *Service
	log     *logger.Logger
}

// NewWebhookHandler creates a new telephony webhook handler.
func NewWebhookHandler(service *Service, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

type streamElement struct {
	XMLName       xml.Name `xml:"Stream"`
	KeepCallAlive string   `xml:"keepCallAlive,attr"`
	ContentType   string   `xml:"contentType,attr"`
	Bidirectional string   `xml:"bidirectional,attr"`
	JoinURL       string   `xml:",chardata"`
}

type answerResponse struct {
	XMLName xml.Name       `xml:"Response"`
	Stream  *streamElement `xml:",omitempty"`
	Hangup  *struct{}      `xml:"Hangup,omitempty"`
}

// HandleAnswer bridges an answered call leg to its voice AI session by
// returning stream instructions with the join URL stored at placement
// time. A call without a stored join URL is hung up.
// GET /webhooks/telephony/answer
func (h *WebhookHandler) HandleAnswer(c *gin.Context) {
	callUUID := c.Query("CallUUID")
	if callUUID == "" {
		c.XML(http.StatusOK, answerResponse{Hangup: &struct{}{}})
		return
	}

	joinURL, err := h.service.AnswerJoinURL(c.Request.Context(), callUUID)
	if err != nil {
		h.log.CallEvent("answer.no_join_url", callUUID, 0, err.Error())
		c.XML(http.StatusOK, answerResponse{Hangup: &struct{}{}})
		return
	}

	h.log.CallEvent("answer", callUUID, 0, "streaming to voice session")
	c.XML(http.StatusOK, answerResponse{Stream: &streamElement{
		KeepCallAlive: "true",
		ContentType:   "audio/x-l16;rate=16000",
		Bidirectional: "true",
		JoinURL:       joinURL,
	}})
}

// HandleHangup records the terminal state the telephony provider posts
// when a call ends and writes the outcome back to the owning contact.
// POST /webhooks/telephony/hangup
func (h *WebhookHandler) HandleHangup(c *gin.Context) {
	callUUID := c.PostForm("CallUUID")
	if callUUID == "" {
		c.String(http.StatusBadRequest, "missing CallUUID")
		return
	}
	duration, _ := strconv.Atoi(c.PostForm("Duration"))

	_, err := h.service.ResolveHangup(c.Request.Context(), HangupEvent{
		CallUUID:     callUUID,
		CallStatus:   c.PostForm("CallStatus"),
		DurationSecs: duration,
		HangupCause:  c.PostForm("HangupCause"),
		HangupSource: c.PostForm("HangupSource"),
	})
	if err != nil {
		// The provider retries on non-2xx. A missing record is not
		// recoverable by retrying, so always acknowledge.
		h.log.CallEvent("hangup.unmatched", callUUID, 0, err.Error())
	}
	c.String(http.StatusOK, "ok")
}
