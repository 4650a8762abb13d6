// Worker ingestion HTTP handler.
//
// POST /internal/ingest is the single endpoint the external scanning worker
// talks to. It is guarded by the pre-shared worker key (middleware) and
// accepts either a heartbeat or a deal find.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/services"
)

// IngestService defines the worker ingestion operation.
type IngestService interface {
	// Ingest applies one worker record; a heartbeat returns a nil deal.
	Ingest(ctx context.Context, rec services.IngestRecord) (*domain.Deal, error)
}

// IngestHandlers groups the worker-facing endpoints.
type IngestHandlers struct {
	svc IngestService
}

// NewIngest constructs the ingestion handler bound to the given service.
func NewIngest(svc IngestService) *IngestHandlers {
	return &IngestHandlers{svc: svc}
}

// IngestResponse acknowledges one processed record.
type IngestResponse struct {
	Status string       `json:"status" example:"ok"`
	Deal   *domain.Deal `json:"deal,omitempty"`
}

// Ingest godoc
// @ID          workerIngest
// @Summary     Worker record ingestion
// @Description Accepts a heartbeat or a deal find from the scanning worker.
// @Description Requires the X-Radar-Api-Key header.
// @Tags        Internal
// @Accept      json
// @Produce     json
// @Param       X-Radar-Api-Key  header  string  true  "Worker key"
// @Param       body  body  services.IngestRecord  true  "Worker record"
// @Success     200  {object}  handlers.IngestResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing price or opinion"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid worker key"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /internal/ingest [post]
func (h *IngestHandlers) Ingest(c *gin.Context) {
	var rec services.IngestRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	deal, err := h.svc.Ingest(c.Request.Context(), rec)
	if err != nil {
		if errors.Is(err, services.ErrMissingDealFields) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "ingestion failed")
		return
	}
	ok(c, http.StatusOK, IngestResponse{Status: "ok", Deal: deal})
}
