package domain

import "time"

// ReportHistory is an immutable audit trail entry for a status transition.
type ReportHistory struct {
	ID        string
	ReportID  string
	ActorID   string
	ActorRole Role
	OldStatus *ReportStatus
	NewStatus ReportStatus
	CreatedAt time.Time
}
