package service

import (
	"context"
	"sort"

	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/repository"
)

// VisibilityService answers which reports a caller may list.
type VisibilityService struct {
	reports repository.ReportRepository
}

// NewVisibilityService builds the service.
func NewVisibilityService(reports repository.ReportRepository) *VisibilityService {
	return &VisibilityService{reports: reports}
}

// ListVisible returns the reports role may see, ordered for display.
// Unknown roles get an empty list.
func (s *VisibilityService) ListVisible(ctx context.Context, role domain.Role, userID string) ([]domain.Report, error) {
	capability, ok := auth.CapabilityFor(role)
	if !ok || len(capability.Categories) == 0 {
		return []domain.Report{}, nil
	}
	filter := repository.ReportFilter{Categories: capability.Categories}
	if capability.OwnReportsOnly {
		filter.ReportedBy = &userID
	}
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	SortForDisplay(reports)
	return reports, nil
}

// SortForDisplay orders by status (pending first), then newest first, then id.
func SortForDisplay(reports []domain.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() < b.Status.Rank()
		}
		if !a.ReportedAt.Equal(b.ReportedAt) {
			return a.ReportedAt.After(b.ReportedAt)
		}
		return a.ID < b.ID
	})
}

// canView reports whether viewer may read one report.
func canView(viewer domain.Actor, report *domain.Report) bool {
	if report.ReportedBy == viewer.ID || report.IsAssignedTo(viewer.ID) {
		return true
	}
	capability, ok := auth.CapabilityFor(viewer.Role)
	if !ok || capability.OwnReportsOnly {
		return false
	}
	return auth.CanSee(viewer.Role, report.Category)
}
