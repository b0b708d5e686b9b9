package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/event-inbox-service/internal/metrics"
	"github.com/PratikDhanave/event-inbox-service/internal/models"
	"github.com/PratikDhanave/event-inbox-service/internal/store"
)

// TimestampLayout renders created_at as ISO-8601 UTC with microseconds and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	// MaxInboxLimit caps the page size of ListPending.
	MaxInboxLimit int
	// StatsCap caps each count in Stats.
	StatsCap int
	// AllowUnpersisted lets Create return an unstored event when the table is missing.
	AllowUnpersisted bool
	// StoreTimeout bounds each backend call.
	StoreTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewEvent is the caller-supplied part of an event.
type NewEvent struct {
	Payload  map[string]interface{}
	Source   string
	Tags     []string
	Metadata map[string]interface{}
}

// Stats holds best-effort counts. Each term is capped and falls back to 0 on failure.
type Stats struct {
	Pending      int
	Acknowledged int
	Total        int
}

// Service owns event identity and the pending -> acknowledged transition.
type Service struct {
	backend store.Backend
	opts    Options
	logger  *slog.Logger
}

// NewService creates the event service over a storage backend.
func NewService(backend store.Backend, opts Options, logger *slog.Logger) *Service {
	if opts.MaxInboxLimit <= 0 {
		opts.MaxInboxLimit = 100
	}
	if opts.StatsCap <= 0 {
		opts.StatsCap = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{backend: backend, opts: opts, logger: logger}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// Create assigns an id and creation time and stores the event as pending.
func (s *Service) Create(ctx context.Context, in NewEvent) (*models.Event, error) {
	if len(in.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload cannot be empty", ErrValidation)
	}

	now := s.opts.Now().UTC()
	e := &models.Event{
		ID:        uuid.New().String(),
		Timestamp: now.Format(TimestampLayout),
		CreatedAt: now.Unix(),
		Payload:   in.Payload,
		Source:    in.Source,
		Status:    models.StatusPending,
	}
	if len(in.Tags) > 0 {
		e.Tags = in.Tags
	}
	if len(in.Metadata) > 0 {
		e.Metadata = in.Metadata
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Put(ctx, e); err != nil {
		if errors.Is(err, store.ErrResourceNotFound) {
			if s.opts.AllowUnpersisted {
				s.logger.WarnContext(ctx, "event table not found, event not persisted",
					slog.String("event_id", e.ID))
				metrics.StoreFallbacks.WithLabelValues("create").Inc()
				metrics.EventsCreated.WithLabelValues("false").Inc()
				return e, nil
			}
			return nil, &UnavailableError{Op: "create", Err: err}
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	metrics.EventsCreated.WithLabelValues("true").Inc()
	return e, nil
}

// Get returns found=false when the event or its table does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Event, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := s.backend.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) || errors.Is(err, store.ErrResourceNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get event: %w", err)
	}
	return e, true, nil
}

// ListPending returns one inbox page. Backend failures come back as *UnavailableError.
func (s *Service) ListPending(ctx context.Context, q InboxQuery) (Page, error) {
	return s.listPending(ctx, q, s.opts.MaxInboxLimit)
}

func (s *Service) listPending(ctx context.Context, q InboxQuery, maxLimit int) (Page, error) {
	q = q.normalize(maxLimit)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.backend.Query(ctx, q.indexQuery())
	if err != nil {
		return Page{Events: []*models.Event{}}, &UnavailableError{Op: "list pending", Err: err}
	}

	return Page{
		Events: paginate(res.Items, q.Offset, q.Limit),
		Total:  res.Count,
	}, nil
}

// Acknowledge moves a pending event to acknowledged in one conditional update.
func (s *Service) Acknowledge(ctx context.Context, id string) (*models.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	at := s.opts.Now().UTC().Unix()
	e, err := s.backend.Acknowledge(ctx, id, at)
	switch {
	case err == nil:
		metrics.EventsAcknowledged.Inc()
		return e, nil
	case errors.Is(err, store.ErrItemNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, store.ErrResourceNotFound):
		return nil, fmt.Errorf("%w: %s (table does not exist)", ErrNotFound, id)
	case errors.Is(err, store.ErrConditionFailed):
		status := "unknown"
		if e != nil {
			status = string(e.Status)
		}
		return nil, fmt.Errorf("%w: event %s is not pending (status: %s)", ErrInvalidState, id, status)
	default:
		return nil, fmt.Errorf("failed to acknowledge event: %w", err)
	}
}

// Stats counts pending and acknowledged events, each capped at StatsCap.
// A failing term is logged and counted as 0 so the call always succeeds.
func (s *Service) Stats(ctx context.Context) Stats {
	var st Stats

	page, err := s.listPending(ctx, InboxQuery{Limit: s.opts.StatsCap}, s.opts.StatsCap)
	if err != nil {
		s.logger.WarnContext(ctx, "pending count unavailable", slog.Any("error", err))
		metrics.StoreFallbacks.WithLabelValues("stats_pending").Inc()
	} else {
		st.Pending = page.Total
	}

	st.Acknowledged = s.countAcknowledged(ctx)
	st.Total = st.Pending + st.Acknowledged
	return st
}

func (s *Service) countAcknowledged(ctx context.Context) int {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.backend.Query(ctx, store.Query{
		Status:     models.StatusAcknowledged,
		Limit:      s.opts.StatsCap,
		Descending: true,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "acknowledged count unavailable", slog.Any("error", err))
		metrics.StoreFallbacks.WithLabelValues("stats_acknowledged").Inc()
		return 0
	}
	return res.Count
}

// Ping checks backend reachability for readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
