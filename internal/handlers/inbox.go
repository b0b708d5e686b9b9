package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-inbox-service/internal/events"
	"github.com/PratikDhanave/event-inbox-service/internal/metrics"
	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// sinceLayouts are the ISO-8601 forms accepted for ?since=. The date and time may be
// separated by 'T' or a space, offsets may omit the colon, and layouts without a zone are
// read as UTC. Fractional seconds are accepted after the seconds field of any layout.
var sinceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseSince parses an ISO-8601 timestamp and normalizes it to UTC.
func parseSince(s string) (time.Time, error) {
	for _, layout := range sinceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 timestamp %q", s)
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// RegisterInboxRoutes registers the pending-events listing.
//
// GET /events/inbox?limit=&offset=&source=&since=
// - limit in [1, MaxInboxLimit], default DefaultInboxLimit
// - since is ISO 8601; invalid values are rejected with 400
// - storage failures return an empty page while DevFallbacks is on
func RegisterInboxRoutes(r gin.IRoutes, svc EventService, opts Options, logger *slog.Logger) {
	r.GET("/events/inbox", func(c *gin.Context) {
		limit, err := queryInt(c, "limit", opts.DefaultInboxLimit)
		if err != nil || limit < 1 || limit > opts.MaxInboxLimit {
			respondError(c, http.StatusBadRequest, ErrKindValidation,
				fmt.Sprintf("limit must be an integer between 1 and %d", opts.MaxInboxLimit), nil)
			return
		}

		offset, err := queryInt(c, "offset", 0)
		if err != nil || offset < 0 {
			respondError(c, http.StatusBadRequest, ErrKindValidation, "offset must be a non-negative integer", nil)
			return
		}

		q := events.InboxQuery{
			Limit:  limit,
			Offset: offset,
			Source: strings.TrimSpace(c.Query("source")),
		}

		if raw := strings.TrimSpace(c.Query("since")); raw != "" {
			since, err := parseSince(raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, ErrKindValidation,
					"Invalid 'since' timestamp format. Use ISO 8601 format.", nil)
				return
			}
			q.Since = &since
		}

		page, err := svc.ListPending(c.Request.Context(), q)
		if err != nil {
			if !errors.Is(err, events.ErrStorageUnavailable) {
				logger.ErrorContext(c.Request.Context(), "list inbox failed", slog.Any("error", err))
				respondError(c, http.StatusInternalServerError, ErrKindInternal, "Failed to list events", nil)
				return
			}
			if !opts.DevFallbacks {
				logger.ErrorContext(c.Request.Context(), "list inbox: storage unavailable", slog.Any("error", err))
				respondError(c, http.StatusServiceUnavailable, ErrKindUnavailable, "Event storage is unavailable", nil)
				return
			}
			logger.WarnContext(c.Request.Context(), "list inbox: storage unavailable, returning empty page", slog.Any("error", err))
			metrics.StoreFallbacks.WithLabelValues("inbox").Inc()
			page = events.Page{}
		}

		items := make([]models.EventItem, 0, len(page.Events))
		for _, e := range page.Events {
			items = append(items, models.ToEventItem(e))
		}

		c.JSON(http.StatusOK, models.InboxResponse{
			Events: items,
			Total:  page.Total,
			Limit:  limit,
			Offset: offset,
		})
	})
}
