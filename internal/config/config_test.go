package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("NOTIFY_SUPERVISOR_IDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "defect-dispatch", cfg.App.Name)
	assert.Equal(t, 30.0, cfg.Dispatch.AssumedSpeedMph)
	assert.Equal(t, 50.0, cfg.Tracking.DistanceThresholdMeters)
	assert.Equal(t, 2*time.Second, cfg.Tracking.PermissionTimeout)
	assert.Equal(t, domain.SeverityMajor, cfg.Notification.SupervisorMinSeverity)
	assert.Equal(t, 3, cfg.Notification.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Notification.EnqueueTimeout)
	assert.Empty(t, cfg.Notification.SupervisorIDs)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DISPATCH_ASSUMED_SPEED_MPH", "45.5")
	t.Setenv("TRACKING_DISTANCE_THRESHOLD_METERS", "25")
	t.Setenv("TRACKING_PERMISSION_TIMEOUT", "750ms")
	t.Setenv("NOTIFY_SUPERVISOR_MIN_SEVERITY", "CRITICAL")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("NOTIFY_SUPERVISOR_IDS", " sup-1, ,admin-1 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45.5, cfg.Dispatch.AssumedSpeedMph)
	assert.Equal(t, 25.0, cfg.Tracking.DistanceThresholdMeters)
	assert.Equal(t, 750*time.Millisecond, cfg.Tracking.PermissionTimeout)
	assert.Equal(t, domain.SeverityCritical, cfg.Notification.SupervisorMinSeverity)
	assert.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
	assert.Equal(t, []string{"sup-1", "admin-1"}, cfg.Notification.SupervisorIDs)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("DISPATCH_ASSUMED_SPEED_MPH", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DISPATCH_ASSUMED_SPEED_MPH", "30")
	t.Setenv("NOTIFY_SUPERVISOR_MIN_SEVERITY", "apocalyptic")
	_, err = Load()
	assert.Error(t, err)
}
