package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-inbox-service/internal/events"
	"github.com/PratikDhanave/event-inbox-service/internal/metrics"
	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// RegisterEventRoutes registers the ingestion and acknowledgement endpoints.
//
// POST /events          - ingest an event (201)
// GET  /events/:id      - fetch one event
// POST /events/:id/ack  - acknowledge a pending event
func RegisterEventRoutes(r gin.IRoutes, svc EventService, opts Options, logger *slog.Logger) {
	r.POST("/events", func(c *gin.Context) {
		var req models.EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, ErrKindValidation, "invalid JSON payload", nil)
			return
		}

		if req.Payload == nil {
			respondError(c, http.StatusBadRequest, ErrKindValidation, "payload is required", nil)
			return
		}
		if len(req.Payload) == 0 {
			respondError(c, http.StatusBadRequest, ErrKindValidation, "Payload cannot be empty", nil)
			return
		}

		// Size is measured on the serialized payload only.
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrKindValidation, "payload is not serializable", nil)
			return
		}
		if opts.MaxPayloadBytes > 0 && len(raw) > opts.MaxPayloadBytes {
			respondError(c, http.StatusBadRequest, ErrKindValidation,
				fmt.Sprintf("Payload size (%d bytes) exceeds maximum (%d bytes)", len(raw), opts.MaxPayloadBytes),
				map[string]interface{}{"payload_bytes": len(raw), "max_bytes": opts.MaxPayloadBytes})
			return
		}

		e, err := svc.Create(c.Request.Context(), events.NewEvent{
			Payload:  req.Payload,
			Source:   strings.TrimSpace(req.Source),
			Tags:     req.Tags,
			Metadata: req.Metadata,
		})
		if err != nil {
			switch {
			case errors.Is(err, events.ErrValidation):
				respondError(c, http.StatusBadRequest, ErrKindValidation, err.Error(), nil)
			case errors.Is(err, events.ErrStorageUnavailable):
				logger.ErrorContext(c.Request.Context(), "create event: storage unavailable", slog.Any("error", err))
				respondError(c, http.StatusServiceUnavailable, ErrKindUnavailable, "Event storage is unavailable", nil)
			default:
				logger.ErrorContext(c.Request.Context(), "create event failed", slog.Any("error", err))
				respondError(c, http.StatusInternalServerError, ErrKindInternal, "Failed to create event", nil)
			}
			return
		}
		metrics.PayloadBytes.Observe(float64(len(raw)))

		c.JSON(http.StatusCreated, models.EventResponse{
			EventID:   e.ID,
			Status:    "created",
			Timestamp: e.Timestamp,
			Message:   "Event ingested successfully",
		})
	})

	r.GET("/events/:id", func(c *gin.Context) {
		id := c.Param("id")

		e, found, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "get event failed", slog.String("event_id", id), slog.Any("error", err))
			respondError(c, http.StatusInternalServerError, ErrKindInternal, "Failed to get event", nil)
			return
		}
		if !found {
			respondError(c, http.StatusNotFound, ErrKindNotFound, fmt.Sprintf("Event %s not found", id), nil)
			return
		}

		c.JSON(http.StatusOK, models.ToEventItem(e))
	})

	r.POST("/events/:id/ack", func(c *gin.Context) {
		id := c.Param("id")

		_, err := svc.Acknowledge(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, events.ErrNotFound):
				respondError(c, http.StatusNotFound, ErrKindNotFound, err.Error(), nil)
			case errors.Is(err, events.ErrInvalidState):
				respondError(c, http.StatusBadRequest, ErrKindInvalidState, err.Error(), nil)
			default:
				logger.ErrorContext(c.Request.Context(), "acknowledge event failed", slog.String("event_id", id), slog.Any("error", err))
				respondError(c, http.StatusInternalServerError, ErrKindInternal, "Failed to acknowledge event", nil)
			}
			return
		}

		c.JSON(http.StatusOK, models.AcknowledgeResponse{
			EventID: id,
			Status:  string(models.StatusAcknowledged),
			Message: "Event acknowledged successfully",
		})
	})
}
