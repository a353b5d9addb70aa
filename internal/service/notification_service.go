package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/config"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/events"
	"github.com/spec-kit/defect-dispatch/internal/notify"
	"github.com/spec-kit/defect-dispatch/internal/repository"
)

// NotificationQueue accepts notifications for background delivery.
type NotificationQueue interface {
	Enqueue(n notify.Notification) bool
}

// NotificationService turns domain events into notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      NotificationQueue
	users      repository.UserRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue NotificationQueue, users repository.UserRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.SupervisorMinSeverity.IsValid() {
		cfg.SupervisorMinSeverity = domain.SeverityMajor
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		users:      users,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventReportCreated, n.handleReportCreated)
	n.dispatcher.Subscribe(events.EventReportTransitioned, n.handleReportTransitioned)
}

func (n *NotificationService) handleReportCreated(ctx context.Context, event events.Event) error {
	payload, ok := createdPayload(event)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if !payload.Severity.AtLeast(n.cfg.SupervisorMinSeverity) {
		return nil
	}

	supervisors, err := n.users.ListByRoles(ctx, auth.SupervisoryRoles())
	if err != nil {
		return fmt.Errorf("list supervisors: %w", err)
	}
	recipients := make([]string, 0, len(supervisors))
	for _, u := range supervisors {
		recipients = append(recipients, u.ID)
	}
	if len(recipients) == 0 {
		n.logger.Warn("no supervisors to notify", zap.String("report_id", event.ReportID))
		return nil
	}

	n.enqueue(event, notify.Notification{
		Kind:       notify.KindDefectFiled,
		Recipients: recipients,
		Severity:   payload.Severity,
		Message:    fmt.Sprintf("%s defect filed for %s at %s", payload.Severity, payload.SubjectID, payload.Location),
	})
	return nil
}

func (n *NotificationService) handleReportTransitioned(_ context.Context, event events.Event) error {
	payload, ok := transitionedPayload(event)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	var (
		kind    notify.Kind
		message string
	)
	switch payload.NewStatus {
	case domain.ReportStatusAccepted:
		kind, message = notify.KindResponderEnRoute, "A responder accepted your report and is en route."
	case domain.ReportStatusInProgress:
		kind, message = notify.KindTrackingAvailable, "Your responder is on the way. Live tracking is available."
	case domain.ReportStatusCompleted:
		kind, message = notify.KindReportCompleted, "Your report has been resolved."
	default:
		return nil
	}

	n.enqueue(event, notify.Notification{
		Kind:       kind,
		Recipients: []string{payload.ReportedBy},
		Severity:   payload.Severity,
		Message:    message,
	})
	return nil
}

func (n *NotificationService) enqueue(event events.Event, msg notify.Notification) {
	msg.ID = uuid.NewString()
	msg.ReportID = event.ReportID
	msg.EventID = event.ID
	msg.CreatedAt = event.Timestamp
	if n.queue == nil || !n.queue.Enqueue(msg) {
		n.logger.Warn("notification not queued",
			zap.String("kind", string(msg.Kind)),
			zap.String("report_id", msg.ReportID))
	}
}

func createdPayload(event events.Event) (events.ReportCreatedPayload, bool) {
	switch p := event.Payload.(type) {
	case events.ReportCreatedPayload:
		return p, true
	case *events.ReportCreatedPayload:
		return *p, p != nil
	}
	return events.ReportCreatedPayload{}, false
}

func transitionedPayload(event events.Event) (events.ReportTransitionedPayload, bool) {
	switch p := event.Payload.(type) {
	case events.ReportTransitionedPayload:
		return p, true
	case *events.ReportTransitionedPayload:
		return *p, p != nil
	}
	return events.ReportTransitionedPayload{}, false
}
