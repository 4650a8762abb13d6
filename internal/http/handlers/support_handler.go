// Support bot HTTP handler.
//
// POST /support answers pre-login questions about the service. Because the
// caller is anonymous, abuse control keys on the client IP instead of a
// session; the limit is enforced in the service layer against the shared
// store so it holds across instances.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/services"
)

// SupportService defines the support bot operation.
type SupportService interface {
	Ask(ctx context.Context, ip, message string) (string, error)
}

// SupportHandlers groups the support endpoints.
type SupportHandlers struct {
	svc SupportService
}

// NewSupport constructs the support handler bound to the given service.
func NewSupport(svc SupportService) *SupportHandlers {
	return &SupportHandlers{svc: svc}
}

// SupportRequest is the JSON payload for a support question.
type SupportRequest struct {
	Message string `json:"message" binding:"required" example:"How do I cancel Premium?"`
}

// SupportResponse carries the bot's answer.
type SupportResponse struct {
	Text string `json:"text"`
}

// Ask godoc
// @ID          supportAsk
// @Summary     Ask the support bot
// @Description Answers an anonymous support question. Limited per client IP.
// @Tags        Support
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SupportRequest  true  "Question"
// @Success     200  {object}  handlers.SupportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many messages"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /support [post]
func (h *SupportHandlers) Ask(c *gin.Context) {
	var req SupportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}

	text, err := h.svc.Ask(c.Request.Context(), c.ClientIP(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSupportRateLimited):
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "too many support messages, try again later")
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, "support bot is unavailable")
		}
		return
	}
	ok(c, http.StatusOK, SupportResponse{Text: text})
}
