package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is a pending notification intent. Transitions return committed state
// plus a list of these; a dispatcher delivers them outside the transaction
// boundary, so delivery failure can never roll back a committed write.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Audience  Audience               `json:"audience"`
	UserID    int64                  `json:"user_id,omitempty"`
	UserEmail string                 `json:"user_email,omitempty"`
	Entity    string                 `json:"entity"`
	EntityID  int64                  `json:"entity_id"`
	Milestone string                 `json:"milestone,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewUserEvent creates a notification intent addressed to the owning user
func NewUserEvent(eventType Type, userID int64, userEmail, entity string, entityID int64, milestone string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        generateID(),
		Type:      eventType,
		Audience:  AudienceUser,
		UserID:    userID,
		UserEmail: userEmail,
		Entity:    entity,
		EntityID:  entityID,
		Milestone: milestone,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewAdminEvent creates a notification intent addressed to the admin channel
func NewAdminEvent(eventType Type, entity string, entityID int64, milestone string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        generateID(),
		Type:      eventType,
		Audience:  AudienceAdmin,
		Entity:    entity,
		EntityID:  entityID,
		Milestone: milestone,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
