package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventReportSubmitted EventType = "report.submitted"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// ReportSubmittedEvent is pushed to the moderation feed when intake
// persists a new pending report.
type ReportSubmittedEvent struct {
	ReportID    string `json:"report_id"`
	AuthorID    string `json:"author_id"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	SubmittedAt string `json:"submitted_at"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
