package repository

import (
	"context"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

// ReportHistoryRepository stores transition audit entries.
type ReportHistoryRepository interface {
	Create(ctx context.Context, history *domain.ReportHistory) error
	ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error)
}

type reportHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewReportHistoryRepository builds repository.
func NewReportHistoryRepository(pool *pgxpool.Pool) ReportHistoryRepository {
	return &reportHistoryRepository{pool: pool}
}

func (r *reportHistoryRepository) Create(ctx context.Context, history *domain.ReportHistory) error {
	query, args, err := psql.
		Insert("report_history").
		Columns("id", "report_id", "actor_id", "actor_role", "old_status", "new_status", "created_at").
		Values(history.ID, history.ReportID, history.ActorID, history.ActorRole, history.OldStatus, history.NewStatus, history.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history Create query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert report history: %w", err)
	}
	return nil
}

func (r *reportHistoryRepository) ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error) {
	query, args, err := psql.
		Select("id", "report_id", "actor_id", "actor_role", "old_status", "new_status", "created_at").
		From("report_history").
		Where(sq.Eq{"report_id": reportID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByReport query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list report history: %w", err)
	}
	defer rows.Close()

	var result []domain.ReportHistory
	for rows.Next() {
		var history domain.ReportHistory
		if err := rows.Scan(
			&history.ID,
			&history.ReportID,
			&history.ActorID,
			&history.ActorRole,
			&history.OldStatus,
			&history.NewStatus,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

type memoryReportHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.ReportHistory
}

// NewMemoryReportHistoryRepository returns an in-memory audit trail.
func NewMemoryReportHistoryRepository() ReportHistoryRepository {
	return &memoryReportHistoryRepository{entries: make(map[string][]domain.ReportHistory)}
}

func (r *memoryReportHistoryRepository) Create(_ context.Context, history *domain.ReportHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[history.ReportID] = append(r.entries[history.ReportID], *history)
	return nil
}

func (r *memoryReportHistoryRepository) ListByReport(_ context.Context, reportID string) ([]domain.ReportHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ReportHistory(nil), r.entries[reportID]...), nil
}
