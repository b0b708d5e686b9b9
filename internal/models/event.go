package models

// Status is the lifecycle state of an event.
type Status string

const (
	// StatusPending is the state of every new event.
	StatusPending Status = "pending"
	// StatusAcknowledged is terminal; it is reached exactly once.
	StatusAcknowledged Status = "acknowledged"
)

// Event is the stored entity. It is created pending and moves to acknowledged exactly once.
type Event struct {
	ID             string                 `json:"event_id"`
	Timestamp      string                 `json:"timestamp"`
	CreatedAt      int64                  `json:"created_at"`
	Payload        map[string]interface{} `json:"payload"`
	Source         string                 `json:"source,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Status         Status                 `json:"status"`
	AcknowledgedAt *int64                 `json:"acknowledged_at,omitempty"`
}

// EventRequest is the POST /events payload.
type EventRequest struct {
	Payload  map[string]interface{} `json:"payload"`
	Source   string                 `json:"source,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EventResponse is returned by POST /events.
type EventResponse struct {
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// EventItem is the public shape of an event in inbox listings.
type EventItem struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Source    string                 `json:"source,omitempty"`
	Status    Status                 `json:"status"`
}

// InboxResponse is returned by GET /events/inbox.
type InboxResponse struct {
	Events []EventItem `json:"events"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// AcknowledgeResponse is returned by POST /events/{id}/ack.
type AcknowledgeResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatsResponse is returned by GET /events/stats.
type StatsResponse struct {
	Pending      int `json:"pending"`
	Acknowledged int `json:"acknowledged"`
	Total        int `json:"total"`
}

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToEventItem maps a stored event to its public listing shape.
func ToEventItem(e *Event) EventItem {
	return EventItem{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
		Source:    e.Source,
		Status:    e.Status,
	}
}
