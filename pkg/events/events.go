// Package events defines event types and structures for lead and workflow run notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic all events are published on.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow definition and run events.
	WorkflowDefinedEvent      EventType = "workflow.defined"
	WorkflowRunStartedEvent   EventType = "workflow.run.started"
	WorkflowRunCompletedEvent EventType = "workflow.run.completed"
	WorkflowRunFailedEvent    EventType = "workflow.run.failed"

	// Lead lifecycle events.
	LeadCreatedEvent       EventType = "lead.created"
	LeadStatusChangedEvent EventType = "lead.status_changed"
	LeadDeletedEvent       EventType = "lead.deleted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type WorkflowDefined struct {
	BaseEvent

	Version int64 `json:"version"`
	Steps   int   `json:"steps"`
	Edges   int   `json:"edges"`
}

func (w WorkflowDefined) GetType() EventType {
	return WorkflowDefinedEvent
}

type WorkflowRunStarted struct {
	BaseEvent

	RunID   string `json:"run_id"`
	Version int64  `json:"version"`
}

func (w WorkflowRunStarted) GetType() EventType {
	return WorkflowRunStartedEvent
}

type WorkflowRunCompleted struct {
	BaseEvent

	RunID      string        `json:"run_id"`
	Version    int64         `json:"version"`
	Visited    []string      `json:"visited"`
	Email      *string       `json:"email,omitempty"`
	WhatsApp   *string       `json:"whatsapp,omitempty"`
	StepErrors int           `json:"step_errors"`
	Duration   time.Duration `json:"duration"`
}

func (w WorkflowRunCompleted) GetType() EventType {
	return WorkflowRunCompletedEvent
}

type WorkflowRunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Version  int64         `json:"version"`
	Step     string        `json:"step,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (w WorkflowRunFailed) GetType() EventType {
	return WorkflowRunFailedEvent
}

type LeadCreated struct {
	BaseEvent

	LeadID string `json:"lead_id"`
	Email  string `json:"email"`
	Source string `json:"source"`
}

func (l LeadCreated) GetType() EventType {
	return LeadCreatedEvent
}

type LeadStatusChanged struct {
	BaseEvent

	LeadID string `json:"lead_id"`
	Status string `json:"status"`
}

func (l LeadStatusChanged) GetType() EventType {
	return LeadStatusChangedEvent
}

type LeadDeleted struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (l LeadDeleted) GetType() EventType {
	return LeadDeletedEvent
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}
