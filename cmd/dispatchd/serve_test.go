package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/config"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/events"
	"github.com/spec-kit/defect-dispatch/internal/notify"
	"github.com/spec-kit/defect-dispatch/internal/persistence"
	"github.com/spec-kit/defect-dispatch/internal/service"
)

type capturedQueue struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (q *capturedQueue) Enqueue(n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return true
}

func TestNewRepositories_MemoryModeSeedsSupervisors(t *testing.T) {
	ctx := context.Background()
	cfg := config.NotificationConfig{SupervisorIDs: []string{"sup-1", "sup-2"}}
	repos := newRepositories(&persistence.Postgres{}, cfg)

	supervisors, err := repos.users.ListByRoles(ctx, auth.SupervisoryRoles())
	require.NoError(t, err)
	require.Len(t, supervisors, 2)
	assert.Equal(t, "sup-1", supervisors[0].ID)
	assert.Equal(t, domain.RoleSupervisor, supervisors[0].Role)
}

func TestMemoryMode_CriticalReportReachesSeededSupervisors(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	notifyCfg := config.NotificationConfig{
		SupervisorIDs:         []string{"sup-1"},
		SupervisorMinSeverity: domain.SeverityMajor,
	}
	repos := newRepositories(&persistence.Postgres{}, notifyCfg)

	dispatcher := events.NewInMemoryDispatcher(logger)
	queue := &capturedQueue{}
	service.NewNotificationService(dispatcher, queue, repos.users, logger, notifyCfg).RegisterHandlers()
	dispatch := service.NewDispatchService(service.DispatchDependencies{
		ReportRepo: repos.reports,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	_, err := dispatch.Submit(ctx, domain.Actor{ID: "reporter-1", Role: domain.RoleReporter}, service.ReportSubmitInput{
		SubjectID: "boiler-3",
		Category:  domain.ReportCategoryGeneral,
		Severity:  domain.SeverityCritical,
	})
	require.NoError(t, err)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	require.Len(t, queue.items, 1)
	assert.Equal(t, notify.KindDefectFiled, queue.items[0].Kind)
	assert.Equal(t, []string{"sup-1"}, queue.items[0].Recipients)
}

func TestSupervisorSeed_Empty(t *testing.T) {
	assert.Empty(t, supervisorSeed(nil))
}
