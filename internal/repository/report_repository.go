package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// ReportFilter narrows a report listing. Empty fields do not filter.
type ReportFilter struct {
	Categories []domain.ReportCategory
	ReportedBy *string
	Limit      int
}

// ReportRepository is the durable store for reports. Status and assignee only
// change through ConditionalUpdate, which commits only when the stored status
// still equals expected.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]domain.Report, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.ReportStatus, patch domain.ReportPatch) (*domain.Report, error)
	UpdateLiveLocation(ctx context.Context, id string, location domain.LiveLocation) error
}

var reportColumns = []string{
	"id", "subject_id", "reported_by", "reported_at", "category", "severity",
	"description", "location_text", "latitude", "longitude", "status",
	"assigned_to", "accepted_at", "completed_at",
	"live_latitude", "live_longitude", "live_recorded_at",
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a Postgres-backed implementation.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	var lat, lng *float64
	if report.Coordinates != nil {
		lat, lng = &report.Coordinates.Latitude, &report.Coordinates.Longitude
	}
	query, args, err := psql.
		Insert("reports").
		Columns("id", "subject_id", "reported_by", "reported_at", "category", "severity",
			"description", "location_text", "latitude", "longitude", "status").
		Values(report.ID, report.SubjectID, report.ReportedBy, report.ReportedAt, report.Category, report.Severity,
			report.Description, report.LocationText, lat, lng, report.Status).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("report already exists", map[string]any{"report_id": report.ID})
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	query, args, err := psql.
		Select(reportColumns...).
		From("reports").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query: %w", err)
	}
	report, err := scanReport(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("report", map[string]any{"report_id": id})
		}
		return nil, err
	}
	return report, nil
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]domain.Report, error) {
	builder := psql.
		Select(reportColumns...).
		From("reports").
		OrderBy("reported_at DESC", "id ASC")
	if len(filter.Categories) > 0 {
		builder = builder.Where(sq.Eq{"category": filter.Categories})
	}
	if filter.ReportedBy != nil {
		builder = builder.Where(sq.Eq{"reported_by": *filter.ReportedBy})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var result []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *report)
	}
	return result, rows.Err()
}

func (r *reportRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.ReportStatus, patch domain.ReportPatch) (*domain.Report, error) {
	builder := psql.
		Update("reports").
		Set("status", patch.Status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": expected})
	if patch.AssignedTo != nil {
		builder = builder.Set("assigned_to", sq.Expr("COALESCE(assigned_to, ?)", *patch.AssignedTo))
	}
	if patch.AcceptedAt != nil {
		builder = builder.Set("accepted_at", *patch.AcceptedAt)
	}
	if patch.CompletedAt != nil {
		builder = builder.Set("completed_at", *patch.CompletedAt)
	}
	if patch.ClearLiveLocation {
		builder = builder.
			Set("live_latitude", nil).
			Set("live_longitude", nil).
			Set("live_recorded_at", nil)
	}
	query, args, err := builder.Suffix("RETURNING " + joinColumns(reportColumns)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ConditionalUpdate query for report %s: %w", id, err)
	}

	report, err := scanReport(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update report status: %w", err)
	}
	return nil, r.missOrConflict(ctx, id, expected)
}

func (r *reportRepository) UpdateLiveLocation(ctx context.Context, id string, location domain.LiveLocation) error {
	query, args, err := psql.
		Update("reports").
		Set("live_latitude", location.Latitude).
		Set("live_longitude", location.Longitude).
		Set("live_recorded_at", location.RecordedAt).
		Where(sq.Eq{"id": id, "status": domain.ReportStatusInProgress}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateLiveLocation query for report %s: %w", id, err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update live location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id, domain.ReportStatusInProgress)
	}
	return nil
}

// missOrConflict tells a missing row apart from a status that moved on.
func (r *reportRepository) missOrConflict(ctx context.Context, id string, expected domain.ReportStatus) error {
	var current domain.ReportStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM reports WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("report", map[string]any{"report_id": id})
	}
	if err != nil {
		return fmt.Errorf("check report status: %w", err)
	}
	return staleStatus(id, expected, current)
}

func staleStatus(id string, expected, current domain.ReportStatus) error {
	return apperrors.NewConflict("report status changed concurrently", map[string]any{
		"report_id":       id,
		"expected_status": expected,
		"current_status":  current,
	})
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report                  domain.Report
		lat, lng                *float64
		liveLat, liveLng        *float64
		liveRecordedAt          *time.Time
		acceptedAt, completedAt *time.Time
	)
	if err := row.Scan(
		&report.ID,
		&report.SubjectID,
		&report.ReportedBy,
		&report.ReportedAt,
		&report.Category,
		&report.Severity,
		&report.Description,
		&report.LocationText,
		&lat,
		&lng,
		&report.Status,
		&report.AssignedTo,
		&acceptedAt,
		&completedAt,
		&liveLat,
		&liveLng,
		&liveRecordedAt,
	); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		report.Coordinates = &domain.Coordinates{Latitude: *lat, Longitude: *lng}
	}
	if liveLat != nil && liveLng != nil && liveRecordedAt != nil {
		report.LiveLocation = &domain.LiveLocation{Latitude: *liveLat, Longitude: *liveLng, RecordedAt: liveRecordedAt.UTC()}
	}
	if acceptedAt != nil {
		t := acceptedAt.UTC()
		report.AcceptedAt = &t
	}
	if completedAt != nil {
		t := completedAt.UTC()
		report.CompletedAt = &t
	}
	report.ReportedAt = report.ReportedAt.UTC()
	return &report, nil
}
