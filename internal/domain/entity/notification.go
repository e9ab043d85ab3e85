package entity

import "time"

// Notification delivery status constants
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification is one row of the delivery ledger. Every dispatched event is
// recorded before the sink runs, then marked sent or failed afterwards, so
// operators can audit what left the system even though delivery itself is
// fire-and-forget.
type Notification struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Audience  string    `json:"audience"`
	Channel   string    `json:"channel"`
	UserID    int64     `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
