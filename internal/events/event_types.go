package events

import (
	"time"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReportCreated      EventType = "report_created"
	EventReportTransitioned EventType = "report_transitioned"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	ReportID  string       `json:"reportId"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// ReportCreatedPayload carries the fields subscribers route on.
type ReportCreatedPayload struct {
	ReportedBy string                `json:"reportedBy"`
	Category   domain.ReportCategory `json:"category"`
	Severity   domain.Severity       `json:"severity"`
	SubjectID  string                `json:"subjectId"`
	Location   string                `json:"locationText"`
}

// ReportTransitionedPayload describes one applied status transition.
type ReportTransitionedPayload struct {
	OldStatus  domain.ReportStatus `json:"oldStatus"`
	NewStatus  domain.ReportStatus `json:"newStatus"`
	ReportedBy string              `json:"reportedBy"`
	AssignedTo string              `json:"assignedTo,omitempty"`
	Severity   domain.Severity     `json:"severity"`
	ReportedAt time.Time           `json:"reportedAt"`
}
