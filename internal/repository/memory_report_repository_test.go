package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/repository"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

func newPending(id string, reportedAt time.Time, category domain.ReportCategory, reporter string) *domain.Report {
	return &domain.Report{
		ID:         id,
		SubjectID:  "subject-" + id,
		ReportedBy: reporter,
		ReportedAt: reportedAt,
		Category:   category,
		Severity:   domain.SeverityMinor,
		Status:     domain.ReportStatusPending,
	}
}

func TestMemoryReportRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryReportRepository()
	report := newPending("r1", time.Now().UTC(), domain.ReportCategoryGeneral, "u1")
	report.Coordinates = &domain.Coordinates{Latitude: 1, Longitude: 2}
	require.NoError(t, repo.Create(ctx, report))

	report.Coordinates.Latitude = 99
	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Coordinates.Latitude, "store keeps its own copy")

	err = repo.Create(ctx, report)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryReportRepository_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryReportRepository()
	require.NoError(t, repo.Create(ctx, newPending("r1", time.Now().UTC(), domain.ReportCategoryGeneral, "u1")))

	assignee := "responder-a"
	updated, err := repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusPending, domain.ReportPatch{
		Status:     domain.ReportStatusAccepted,
		AssignedTo: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusAccepted, updated.Status)
	assert.True(t, updated.IsAssignedTo(assignee))

	other := "responder-b"
	_, err = repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusPending, domain.ReportPatch{
		Status:     domain.ReportStatusAccepted,
		AssignedTo: &other,
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = repo.ConditionalUpdate(ctx, "missing", domain.ReportStatusPending, domain.ReportPatch{Status: domain.ReportStatusAccepted})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	updated, err = repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusAccepted, domain.ReportPatch{
		Status:     domain.ReportStatusInProgress,
		AssignedTo: &other,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsAssignedTo(assignee), "assignee is immutable once set")
}

func TestMemoryReportRepository_ConcurrentCASHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryReportRepository()
	require.NoError(t, repo.Create(ctx, newPending("r1", time.Now().UTC(), domain.ReportCategoryGeneral, "u1")))

	const contenders = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusPending, domain.ReportPatch{
				Status:     domain.ReportStatusAccepted,
				AssignedTo: &id,
			})
			if err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrConflict)
		}(string(rune('a' + i)))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.IsAssignedTo(winners[0]))
}

func TestMemoryReportRepository_UpdateLiveLocationRequiresInProgress(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryReportRepository()
	require.NoError(t, repo.Create(ctx, newPending("r1", time.Now().UTC(), domain.ReportCategoryGeneral, "u1")))

	loc := domain.LiveLocation{Latitude: 1, Longitude: 1, RecordedAt: time.Now().UTC()}
	assert.ErrorIs(t, repo.UpdateLiveLocation(ctx, "r1", loc), apperrors.ErrConflict)
	assert.ErrorIs(t, repo.UpdateLiveLocation(ctx, "missing", loc), apperrors.ErrNotFound)

	who := "responder"
	_, err := repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusPending, domain.ReportPatch{Status: domain.ReportStatusAccepted, AssignedTo: &who})
	require.NoError(t, err)
	_, err = repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusAccepted, domain.ReportPatch{Status: domain.ReportStatusInProgress})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateLiveLocation(ctx, "r1", loc))
	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.LiveLocation)
	assert.Equal(t, loc, *got.LiveLocation)

	_, err = repo.ConditionalUpdate(ctx, "r1", domain.ReportStatusInProgress, domain.ReportPatch{
		Status:            domain.ReportStatusCompleted,
		ClearLiveLocation: true,
	})
	require.NoError(t, err)
	got, err = repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.LiveLocation)
}

func TestMemoryReportRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryReportRepository()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newPending("a", base, domain.ReportCategoryGeneral, "u1")))
	require.NoError(t, repo.Create(ctx, newPending("b", base.Add(time.Minute), domain.ReportCategorySpecialized, "u1")))
	require.NoError(t, repo.Create(ctx, newPending("c", base.Add(2*time.Minute), domain.ReportCategoryGeneral, "u2")))

	all, err := repo.List(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	general, err := repo.List(ctx, repository.ReportFilter{Categories: []domain.ReportCategory{domain.ReportCategoryGeneral}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(general))

	reporter := "u1"
	own, err := repo.List(ctx, repository.ReportFilter{ReportedBy: &reporter, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(own))
}

func TestMemoryUserRepository_ListByRoles(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository(
		domain.User{ID: "s2", Role: domain.RoleSupervisor, Active: true},
		domain.User{ID: "s1", Role: domain.RoleSupervisor, Active: true},
		domain.User{ID: "a1", Role: domain.RoleAdmin, Active: false},
		domain.User{ID: "g1", Role: domain.RoleGeneralResponder, Active: true},
	)

	users, err := repo.ListByRoles(ctx, []domain.Role{domain.RoleSupervisor, domain.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "s1", users[0].ID)
	assert.Equal(t, "s2", users[1].ID)
}

func ids(reports []domain.Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}
