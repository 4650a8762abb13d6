// Deal HTTP handlers.
//
// This file exposes the deal surface for signed-in users:
//   - POST /deals/save     (add a deal to the saved list)
//   - POST /deals/unsave   (remove a saved deal by id)
//   - GET  /deals/saved    (the saved list, newest first)
//   - GET  /feed           (dashboard: latest deal, histories, saved
//     list, worker liveness, chart)
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

// DealService defines the deal list operations consumed by HTTP handlers.
type DealService interface {
	Save(ctx context.Context, email string, deal domain.Deal) (bool, error)
	Unsave(ctx context.Context, email, dealID string) (bool, error)
	Saved(ctx context.Context, email string) ([]domain.Deal, error)
	Assemble(ctx context.Context, email string) services.Feed
}

// DealHandlers groups the deal endpoints.
type DealHandlers struct {
	svc DealService
}

// NewDeals constructs the deal handlers bound to the given service.
func NewDeals(svc DealService) *DealHandlers {
	return &DealHandlers{svc: svc}
}

//
// DTOs
//

// SaveDealRequest carries the full deal to pin to the saved list.
type SaveDealRequest struct {
	Deal domain.Deal `json:"deal" binding:"required"`
}

// UnsaveDealRequest identifies the saved deal to remove.
type UnsaveDealRequest struct {
	ID string `json:"id" binding:"required" example:"8f14e45f-ceea-467f-9f4d-41dcb46e7b1a"`
}

// SaveDealResponse reports whether the save changed the list.
type SaveDealResponse struct {
	Saved bool `json:"saved"`
}

// UnsaveDealResponse reports whether the removal changed the list.
type UnsaveDealResponse struct {
	Removed bool `json:"removed"`
}

// SavedDealsResponse wraps the saved list, newest first.
type SavedDealsResponse struct {
	Deals []domain.Deal `json:"deals"`
}

//
// Handlers
//

// Save godoc
// @ID          saveDeal
// @Summary     Save a deal
// @Description Pins a deal onto the user's saved list (max 50, newest first).
// @Description Saving an already-saved deal id is a no-op.
// @Tags        Deals
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SaveDealRequest  true  "Deal to save"
// @Success     200  {object}  handlers.SaveDealResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing deal id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /deals/save [post]
func (h *DealHandlers) Save(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req SaveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deal required")
		return
	}

	added, err := h.svc.Save(c.Request.Context(), email, req.Deal)
	if err != nil {
		if errors.Is(err, services.ErrDealMissingID) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "save failed")
		return
	}
	ok(c, http.StatusOK, SaveDealResponse{Saved: added})
}

// Unsave godoc
// @ID          unsaveDeal
// @Summary     Remove a saved deal
// @Tags        Deals
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UnsaveDealRequest  true  "Deal id"
// @Success     200  {object}  handlers.UnsaveDealResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing deal id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /deals/unsave [post]
func (h *DealHandlers) Unsave(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req UnsaveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deal id required")
		return
	}

	removed, err := h.svc.Unsave(c.Request.Context(), email, req.ID)
	if err != nil {
		if errors.Is(err, services.ErrDealMissingID) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "unsave failed")
		return
	}
	ok(c, http.StatusOK, UnsaveDealResponse{Removed: removed})
}

// Saved godoc
// @ID          savedDeals
// @Summary     List saved deals
// @Tags        Deals
// @Produce     json
// @Success     200  {object}  handlers.SavedDealsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /deals/saved [get]
func (h *DealHandlers) Saved(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	deals, err := h.svc.Saved(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "saved list lookup failed")
		return
	}
	ok(c, http.StatusOK, SavedDealsResponse{Deals: deals})
}

// Feed godoc
// @ID          dealFeed
// @Summary     Dashboard deal feed
// @Description Returns the latest worker find (or a placeholder), the merged
// @Description personal and global deal history, the user's own scan results
// @Description and saved list, the worker liveness status, and the price
// @Description chart series.
// @Tags        Deals
// @Produce     json
// @Success     200  {object}  services.Feed
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /feed [get]
func (h *DealHandlers) Feed(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	ok(c, http.StatusOK, h.svc.Assemble(c.Request.Context(), email))
}
