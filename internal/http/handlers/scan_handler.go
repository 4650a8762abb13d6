// Scan HTTP handlers.
//
// This file exposes POST /scans, which validates a marketplace scan request
// and appends it to the worker queue. Free-tier scans count against the
// same daily allowance as chat turns; premium marketplaces and priority
// dispatch are subscription perks.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/http/middleware"
	"github.com/rigradar/go-radar-backend/internal/services"
)

// ScanService defines the scan dispatch operation consumed by HTTP handlers.
type ScanService interface {
	Dispatch(ctx context.Context, email string, req services.ScanRequest) (*domain.ScanTask, error)
}

// ScanHandlers groups the scan endpoints.
type ScanHandlers struct {
	svc ScanService
}

// NewScan constructs the scan handlers bound to the given service.
func NewScan(svc ScanService) *ScanHandlers {
	return &ScanHandlers{svc: svc}
}

// ScanDispatchRequest is the JSON payload for requesting a scan.
type ScanDispatchRequest struct {
	// Query is the product search text (required, 2-60 chars after cleanup).
	Query string `json:"query" binding:"required" example:"rtx 4070 super"`
	// Stores limits the scan to given marketplaces; defaults to ebay.
	Stores []string `json:"stores" example:"ebay,bazos"`
	// Condition filters by item condition: any, new, or used.
	Condition string `json:"condition" example:"used"`
	// MinPrice / MaxPrice bound the price range (absolute values).
	MinPrice *float64 `json:"minPrice" example:"100"`
	MaxPrice *float64 `json:"maxPrice" example:"450"`
}

// ScanDispatchResponse confirms the queued task.
type ScanDispatchResponse struct {
	Status string          `json:"status" example:"queued"`
	Task   domain.ScanTask `json:"task"`
}

// Dispatch godoc
// @ID          dispatchScan
// @Summary     Queue a marketplace scan
// @Description Validates the request and appends a scan task for the worker.
// @Description Free-tier scans consume the daily allowance; premium-only
// @Description marketplaces require a subscription.
// @Tags        Scans
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ScanDispatchRequest  true  "Scan parameters"
// @Success     202  {object}  handlers.ScanDispatchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid query"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Limit reached or premium required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /scans [post]
func (h *ScanHandlers) Dispatch(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req ScanDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query required")
		return
	}

	task, err := h.svc.Dispatch(c.Request.Context(), email, services.ScanRequest{
		Query:     req.Query,
		Stores:    req.Stores,
		Condition: req.Condition,
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
	})
	if err != nil {
		var qe *services.QuotaError
		var pe *services.PremiumStoreError
		switch {
		case errors.As(err, &qe):
			fail(c, http.StatusForbidden, ErrCodeLimitReached, qe.Error())
		case errors.As(err, &pe):
			fail(c, http.StatusForbidden, ErrCodePremiumRequired, pe.Error())
		case errors.Is(err, services.ErrInvalidQuery):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeDispatchFailed, "scan dispatch failed")
		}
		return
	}
	ok(c, http.StatusAccepted, ScanDispatchResponse{Status: "queued", Task: *task})
}
