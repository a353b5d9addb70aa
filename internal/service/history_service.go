package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/events"
	"github.com/spec-kit/defect-dispatch/internal/repository"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// HistoryService records and serves the transition audit trail.
type HistoryService struct {
	reports repository.ReportRepository
	history repository.ReportHistoryRepository
}

// NewHistoryService builds the service.
func NewHistoryService(reports repository.ReportRepository, history repository.ReportHistoryRepository) *HistoryService {
	return &HistoryService{reports: reports, history: history}
}

// RegisterHandlers subscribes to report events.
func (h *HistoryService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventReportCreated, h.record)
	dispatcher.Subscribe(events.EventReportTransitioned, h.record)
}

// History lists a report's transitions, oldest first.
func (h *HistoryService) History(ctx context.Context, reportID string, viewer domain.Actor) ([]domain.ReportHistory, error) {
	report, err := h.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, report) {
		return nil, apperrors.NewPermissionDenied("report not visible to caller", map[string]any{"report_id": reportID})
	}
	return h.history.ListByReport(ctx, reportID)
}

func (h *HistoryService) record(ctx context.Context, event events.Event) error {
	entry := &domain.ReportHistory{
		ID:        uuid.NewString(),
		ReportID:  event.ReportID,
		ActorID:   event.Actor.ID,
		ActorRole: event.Actor.Role,
		CreatedAt: event.Timestamp,
	}
	switch event.Type {
	case events.EventReportCreated:
		entry.NewStatus = domain.ReportStatusPending
	case events.EventReportTransitioned:
		payload, ok := transitionedPayload(event)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		old := payload.OldStatus
		entry.OldStatus = &old
		entry.NewStatus = payload.NewStatus
	default:
		return nil
	}
	if err := h.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record history for report %s: %w", event.ReportID, err)
	}
	return nil
}
