package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/events"
	"github.com/spec-kit/defect-dispatch/internal/geo"
	"github.com/spec-kit/defect-dispatch/internal/observability"
	"github.com/spec-kit/defect-dispatch/internal/repository"
	"github.com/spec-kit/defect-dispatch/internal/tracking"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

const maxCompleteAttempts = 3

// LocationTracker starts and stops tracking sessions.
type LocationTracker interface {
	Start(ctx context.Context, reportID, responderID string) (*tracking.Handle, error)
	Stop(h *tracking.Handle)
}

// DispatchService applies report lifecycle transitions.
type DispatchService struct {
	reports         repository.ReportRepository
	tracker         LocationTracker
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
	assumedSpeedMph float64
	now             func() time.Time

	mu       sync.Mutex
	sessions map[string]*tracking.Handle

	// reportLocks serialises BeginTracking and Complete per report so a
	// session is never started after its report completed.
	reportLocks sync.Map
}

// DispatchDependencies bundles collaborators for the dispatch service.
type DispatchDependencies struct {
	ReportRepo      repository.ReportRepository
	Tracker         LocationTracker
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	AssumedSpeedMph float64
	Now             func() time.Time
}

// ReportSubmitInput describes a new defect report.
type ReportSubmitInput struct {
	SubjectID    string
	Category     domain.ReportCategory
	Severity     domain.Severity
	Description  string
	LocationText string
	Coordinates  *domain.Coordinates
}

// TrackingState tells the caller whether live tracking is running.
type TrackingState struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

// BeginTrackingResult is the outcome of BeginTracking.
type BeginTrackingResult struct {
	Report   *domain.Report
	Tracking TrackingState
}

// ReportView is a report plus figures derived at read time.
type ReportView struct {
	Report        *domain.Report
	DistanceMiles *float64
	EtaMinutes    *int
}

// NewDispatchService wires the service.
func NewDispatchService(deps DispatchDependencies) *DispatchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	speed := deps.AssumedSpeedMph
	if speed <= 0 {
		speed = 30
	}
	return &DispatchService{
		reports:         deps.ReportRepo,
		tracker:         deps.Tracker,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		metrics:         deps.Metrics,
		assumedSpeedMph: speed,
		now:             now,
		sessions:        make(map[string]*tracking.Handle),
	}
}

// Submit files a new pending report.
func (s *DispatchService) Submit(ctx context.Context, reporter domain.Actor, input ReportSubmitInput) (*domain.Report, error) {
	if strings.TrimSpace(input.SubjectID) == "" {
		return nil, apperrors.NewValidationError("subject_id required", nil)
	}
	if !input.Category.IsValid() {
		return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": input.Category})
	}
	if !input.Severity.IsValid() {
		return nil, apperrors.NewValidationError("invalid severity", map[string]any{"severity": input.Severity})
	}
	if input.Coordinates != nil {
		if err := geo.FromCoordinates(*input.Coordinates).Validate(); err != nil {
			return nil, err
		}
	}

	report := &domain.Report{
		ID:           uuid.NewString(),
		SubjectID:    strings.TrimSpace(input.SubjectID),
		ReportedBy:   reporter.ID,
		ReportedAt:   s.now(),
		Category:     input.Category,
		Severity:     input.Severity,
		Description:  strings.TrimSpace(input.Description),
		LocationText: strings.TrimSpace(input.LocationText),
		Status:       domain.ReportStatusPending,
	}
	if input.Coordinates != nil {
		c := *input.Coordinates
		report.Coordinates = &c
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventReportCreated,
		ReportID: report.ID,
		Actor:    reporter,
		Payload: events.ReportCreatedPayload{
			ReportedBy: report.ReportedBy,
			Category:   report.Category,
			Severity:   report.Severity,
			SubjectID:  report.SubjectID,
			Location:   report.LocationText,
		},
	})
	s.logger.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("severity", string(report.Severity)),
		zap.String("category", string(report.Category)))
	return report, nil
}

// Accept claims a pending report for the responder. Exactly one of several
// concurrent callers wins; the others get a conflict.
func (s *DispatchService) Accept(ctx context.Context, reportID string, responder domain.Actor) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !auth.CanRespond(responder.Role, report.Category) {
		return nil, apperrors.NewPermissionDenied("role cannot respond to this category", map[string]any{
			"report_id": reportID,
			"role":      responder.Role,
			"category":  report.Category,
		})
	}
	switch report.Status {
	case domain.ReportStatusPending:
	case domain.ReportStatusAccepted:
		if !report.IsAssignedTo(responder.ID) {
			s.metrics.RecordTransition(string(report.Status), string(domain.ReportStatusAccepted), apperrors.CodeConflict)
			return nil, apperrors.NewConflict("report already accepted by another responder", map[string]any{"report_id": reportID})
		}
		fallthrough
	default:
		return nil, s.invalidTransition(reportID, report.Status, domain.ReportStatusAccepted)
	}

	now := s.now()
	updated, err := s.reports.ConditionalUpdate(ctx, reportID, domain.ReportStatusPending, domain.ReportPatch{
		Status:     domain.ReportStatusAccepted,
		AssignedTo: &responder.ID,
		AcceptedAt: &now,
	})
	if err != nil {
		s.metrics.RecordTransition(string(domain.ReportStatusPending), string(domain.ReportStatusAccepted), apperrors.ToDomainError(err).Code)
		return nil, err
	}

	s.transitioned(ctx, responder, domain.ReportStatusPending, updated)
	s.metrics.ObserveResponse("accepted", string(updated.Severity), now.Sub(updated.ReportedAt))
	return updated, nil
}

// BeginTracking moves an accepted report to in_progress and starts streaming
// the assignee's position. Calling it again while in progress is a no-op that
// restarts a missing session. A denied location permission leaves the
// transition in place and reports tracking as inactive.
func (s *DispatchService) BeginTracking(ctx context.Context, reportID string, responder domain.Actor) (*BeginTrackingResult, error) {
	unlock := s.lockReport(reportID)
	defer unlock()

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == domain.ReportStatusPending {
		return nil, s.invalidTransition(reportID, report.Status, domain.ReportStatusInProgress)
	}
	if !report.IsAssignedTo(responder.ID) {
		return nil, notAssignee(reportID)
	}

	switch report.Status {
	case domain.ReportStatusAccepted:
		updated, err := s.reports.ConditionalUpdate(ctx, reportID, domain.ReportStatusAccepted, domain.ReportPatch{
			Status: domain.ReportStatusInProgress,
		})
		if err != nil {
			s.metrics.RecordTransition(string(domain.ReportStatusAccepted), string(domain.ReportStatusInProgress), apperrors.ToDomainError(err).Code)
			return nil, err
		}
		s.transitioned(ctx, responder, domain.ReportStatusAccepted, updated)
		report = updated
	case domain.ReportStatusInProgress:
	default:
		return nil, s.invalidTransition(reportID, report.Status, domain.ReportStatusInProgress)
	}

	return &BeginTrackingResult{
		Report:   report,
		Tracking: s.ensureTracking(ctx, report.ID, responder.ID),
	}, nil
}

// Complete closes the report, clears its live location and stops tracking.
func (s *DispatchService) Complete(ctx context.Context, reportID string, responder domain.Actor) (*domain.Report, error) {
	unlock := s.lockReport(reportID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		report, err := s.reports.GetByID(ctx, reportID)
		if err != nil {
			return nil, err
		}
		if report.Status == domain.ReportStatusPending {
			return nil, s.invalidTransition(reportID, report.Status, domain.ReportStatusCompleted)
		}
		if !report.IsAssignedTo(responder.ID) {
			return nil, notAssignee(reportID)
		}
		if report.Status.IsTerminal() {
			return nil, s.invalidTransition(reportID, report.Status, domain.ReportStatusCompleted)
		}

		now := s.now()
		updated, err := s.reports.ConditionalUpdate(ctx, reportID, report.Status, domain.ReportPatch{
			Status:            domain.ReportStatusCompleted,
			CompletedAt:       &now,
			ClearLiveLocation: true,
		})
		if errors.Is(err, apperrors.ErrConflict) && attempt < maxCompleteAttempts {
			s.logger.Debug("report moved during complete; retrying",
				zap.String("report_id", reportID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.metrics.RecordTransition(string(report.Status), string(domain.ReportStatusCompleted), apperrors.ToDomainError(err).Code)
			return nil, err
		}

		s.stopTracking(reportID)
		s.transitioned(ctx, responder, report.Status, updated)
		s.metrics.ObserveResponse("completed", string(updated.Severity), now.Sub(updated.ReportedAt))
		return updated, nil
	}
}

// GetReport returns the report with distance and ETA when a live location is
// known. reference defaults to the report's own coordinates, speedMph to the
// configured assumed speed.
func (s *DispatchService) GetReport(ctx context.Context, reportID string, viewer domain.Actor, reference *geo.Point, speedMph float64) (*ReportView, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, report) {
		return nil, apperrors.NewPermissionDenied("report not visible to caller", map[string]any{"report_id": reportID})
	}

	view := &ReportView{Report: report}
	if report.LiveLocation == nil {
		return view, nil
	}
	if reference == nil && report.Coordinates != nil {
		p := geo.FromCoordinates(*report.Coordinates)
		reference = &p
	}
	if reference == nil {
		return view, nil
	}
	if speedMph <= 0 {
		speedMph = s.assumedSpeedMph
	}

	miles, err := geo.HaversineMiles(geo.FromCoordinates(report.LiveLocation.Coordinates()), *reference)
	if err != nil {
		return nil, err
	}
	eta, err := geo.EstimateEtaMinutes(miles, speedMph)
	if err != nil {
		return nil, err
	}
	view.DistanceMiles = &miles
	view.EtaMinutes = &eta
	return view, nil
}

// Shutdown stops every tracking session this service owns.
func (s *DispatchService) Shutdown() {
	s.mu.Lock()
	handles := make([]*tracking.Handle, 0, len(s.sessions))
	for id, h := range s.sessions {
		handles = append(handles, h)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.tracker.Stop(h)
	}
}

func (s *DispatchService) ensureTracking(ctx context.Context, reportID, responderID string) TrackingState {
	if s.tracker == nil {
		return TrackingState{Reason: "tracking unavailable"}
	}

	s.mu.Lock()
	existing, ok := s.sessions[reportID]
	s.mu.Unlock()
	if ok && !existing.Finished() {
		return TrackingState{Active: true}
	}

	handle, err := s.tracker.Start(ctx, reportID, responderID)
	if err != nil {
		reason := "tracking unavailable"
		if errors.Is(err, apperrors.ErrPermissionDenied) {
			reason = "location permission denied"
		}
		s.logger.Warn("tracking not started",
			zap.String("report_id", reportID),
			zap.String("responder_id", responderID),
			zap.Error(err))
		return TrackingState{Reason: reason}
	}

	s.mu.Lock()
	s.sessions[reportID] = handle
	s.mu.Unlock()
	return TrackingState{Active: true}
}

func (s *DispatchService) stopTracking(reportID string) {
	s.mu.Lock()
	handle, ok := s.sessions[reportID]
	delete(s.sessions, reportID)
	s.mu.Unlock()
	if ok && s.tracker != nil {
		s.tracker.Stop(handle)
	}
}

func (s *DispatchService) lockReport(reportID string) func() {
	value, _ := s.reportLocks.LoadOrStore(reportID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *DispatchService) transitioned(ctx context.Context, actor domain.Actor, from domain.ReportStatus, report *domain.Report) {
	s.metrics.RecordTransition(string(from), string(report.Status), "ok")
	payload := events.ReportTransitionedPayload{
		OldStatus:  from,
		NewStatus:  report.Status,
		ReportedBy: report.ReportedBy,
		Severity:   report.Severity,
		ReportedAt: report.ReportedAt,
	}
	if report.AssignedTo != nil {
		payload.AssignedTo = *report.AssignedTo
	}
	s.publish(ctx, events.Event{
		Type:     events.EventReportTransitioned,
		ReportID: report.ID,
		Actor:    actor,
		Payload:  payload,
	})
	s.logger.Info("report transitioned",
		zap.String("report_id", report.ID),
		zap.String("from", string(from)),
		zap.String("to", string(report.Status)),
		zap.String("actor_id", actor.ID))
}

func (s *DispatchService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *DispatchService) invalidTransition(reportID string, from, to domain.ReportStatus) error {
	s.metrics.RecordTransition(string(from), string(to), apperrors.CodeInvalidTransition)
	return apperrors.NewInvalidTransition(string(from), string(to), map[string]any{"report_id": reportID})
}

func notAssignee(reportID string) error {
	return apperrors.NewPermissionDenied("only the assigned responder may do this", map[string]any{"report_id": reportID})
}
