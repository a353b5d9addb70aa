// Package notify defines outbound notifications and the channels that carry them.
package notify

import (
	"context"
	"time"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

// Kind names what a notification is about.
type Kind string

const (
	KindDefectFiled       Kind = "defect_filed"
	KindResponderEnRoute  Kind = "responder_en_route"
	KindTrackingAvailable Kind = "tracking_available"
	KindReportCompleted   Kind = "report_completed"
)

// Notification is one message for one or more users.
type Notification struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	ReportID   string          `json:"reportId"`
	EventID    string          `json:"eventId"`
	Recipients []string        `json:"recipients"`
	Severity   domain.Severity `json:"severity,omitempty"`
	Message    string          `json:"message"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Channel delivers notifications somewhere. Send must be safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
