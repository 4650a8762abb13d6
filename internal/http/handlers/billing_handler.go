// Billing webhook HTTP handler.
//
// POST /webhooks/billing receives signed events from the payment provider
// and keeps the premium flag on the identity record in sync. The raw body
// is verified against the X-Billing-Signature header before anything is
// decoded or applied.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/billing"
)

// SignatureHeader carries the hex HMAC of the webhook body.
const SignatureHeader = "X-Billing-Signature"

// maxWebhookBody bounds the body read so a misbehaving sender cannot
// exhaust memory.
const maxWebhookBody = 1 << 20

// BillingSync applies verified billing events.
type BillingSync interface {
	Apply(ctx context.Context, ev billing.Event) error
}

// BillingHandlers groups the billing endpoints.
type BillingHandlers struct {
	sync   BillingSync
	secret string
}

// NewBilling constructs the webhook handler with the shared signing secret.
func NewBilling(sync BillingSync, secret string) *BillingHandlers {
	return &BillingHandlers{sync: sync, secret: secret}
}

// Webhook godoc
// @ID          billingWebhook
// @Summary     Billing provider webhook
// @Description Verifies the HMAC signature over the raw body and applies the
// @Description subscription change. Unknown event types are acknowledged.
// @Tags        Internal
// @Accept      json
// @Produce     json
// @Param       X-Billing-Signature  header  string  true  "Hex HMAC-SHA256 of the body"
// @Success     200  {object}  map[string]string
// @Failure     400  {object}  handlers.ErrorResponse  "Bad signature or unusable event"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhooks/billing [post]
func (h *BillingHandlers) Webhook(c *gin.Context) {
	if h.secret == "" {
		// Without a secret no delivery can be authenticated.
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	ev, err := billing.ParseEvent(body, c.GetHeader(SignatureHeader), h.secret)
	if err != nil {
		if errors.Is(err, billing.ErrBadSignature) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "signature verification failed")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "undecodable event")
		return
	}

	if err := h.sync.Apply(c.Request.Context(), ev); err != nil {
		if errors.Is(err, billing.ErrNoEmail) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "event application failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
