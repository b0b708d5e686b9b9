package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-inbox-service/internal/events"
	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// Error kinds carried in ErrorResponse.Error.
const (
	ErrKindValidation   = "validation_error"
	ErrKindNotFound     = "not_found"
	ErrKindInvalidState = "invalid_state"
	ErrKindUnavailable  = "storage_unavailable"
	ErrKindInternal     = "internal_error"
)

// EventService is the event store the handlers drive.
type EventService interface {
	Create(ctx context.Context, in events.NewEvent) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, bool, error)
	ListPending(ctx context.Context, q events.InboxQuery) (events.Page, error)
	Acknowledge(ctx context.Context, id string) (*models.Event, error)
	Stats(ctx context.Context) events.Stats
}

// Options carries the request limits enforced at the API boundary.
type Options struct {
	MaxPayloadBytes   int
	DefaultInboxLimit int
	MaxInboxLimit     int
	// DevFallbacks answers inbox reads with an empty page when storage is unavailable.
	DevFallbacks bool
}

func respondError(c *gin.Context, status int, kind, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:   kind,
		Message: message,
		Details: details,
	})
}
