package events

import (
	"time"

	"github.com/cleanmap/reports-service/internal/types"
)

// Publisher pushes intake events to whoever is listening. Publishing
// is best-effort; intake never blocks or fails on it.
type Publisher interface {
	PublishReportSubmitted(reportID, authorID, category, severity string) error
}

// ModerationHub is the broadcast surface the publisher writes to.
type ModerationHub interface {
	Broadcast(event *types.Event)
}

// EventPublisher implements Publisher on top of the websocket hub.
type EventPublisher struct {
	hub ModerationHub
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(hub ModerationHub) *EventPublisher {
	return &EventPublisher{
		hub: hub,
	}
}

// PublishReportSubmitted notifies the moderation feed that a new
// report entered the review queue.
func (p *EventPublisher) PublishReportSubmitted(reportID, authorID, category, severity string) error {
	eventData := &types.ReportSubmittedEvent{
		ReportID:    reportID,
		AuthorID:    authorID,
		Category:    category,
		Severity:    severity,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	event := types.NewEvent(types.EventReportSubmitted, eventData)
	p.hub.Broadcast(event)

	return nil
}
