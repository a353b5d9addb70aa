package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// memoryReportRepository keeps reports in process. Used when no DSN is set and in tests.
type memoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
}

// NewMemoryReportRepository returns an empty in-memory store.
func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{reports: make(map[string]*domain.Report)}
}

func (r *memoryReportRepository) Create(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reports[report.ID]; exists {
		return apperrors.NewConflict("report already exists", map[string]any{"report_id": report.ID})
	}
	r.reports[report.ID] = report.Clone()
	return nil
}

func (r *memoryReportRepository) GetByID(_ context.Context, id string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, apperrors.NewNotFound("report", map[string]any{"report_id": id})
	}
	return report.Clone(), nil
}

func (r *memoryReportRepository) List(_ context.Context, filter ReportFilter) ([]domain.Report, error) {
	categories := make(map[domain.ReportCategory]struct{}, len(filter.Categories))
	for _, c := range filter.Categories {
		categories[c] = struct{}{}
	}

	r.mu.RLock()
	result := make([]domain.Report, 0, len(r.reports))
	for _, report := range r.reports {
		if len(categories) > 0 {
			if _, ok := categories[report.Category]; !ok {
				continue
			}
		}
		if filter.ReportedBy != nil && report.ReportedBy != *filter.ReportedBy {
			continue
		}
		result = append(result, *report.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ReportedAt.Equal(result[j].ReportedAt) {
			return result[i].ReportedAt.After(result[j].ReportedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *memoryReportRepository) ConditionalUpdate(_ context.Context, id string, expected domain.ReportStatus, patch domain.ReportPatch) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, apperrors.NewNotFound("report", map[string]any{"report_id": id})
	}
	if report.Status != expected {
		return nil, staleStatus(id, expected, report.Status)
	}
	updated := report.Clone()
	patch.Apply(updated)
	r.reports[id] = updated
	return updated.Clone(), nil
}

func (r *memoryReportRepository) UpdateLiveLocation(_ context.Context, id string, location domain.LiveLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return apperrors.NewNotFound("report", map[string]any{"report_id": id})
	}
	if report.Status != domain.ReportStatusInProgress {
		return staleStatus(id, domain.ReportStatusInProgress, report.Status)
	}
	loc := location
	report.LiveLocation = &loc
	return nil
}
