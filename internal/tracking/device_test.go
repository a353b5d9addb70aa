package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceHub_PublishRequiresGrant(t *testing.T) {
	hub := NewDeviceHub(10*time.Millisecond, 1, nil)
	sub, err := hub.Subscribe("r1")
	require.NoError(t, err)

	assert.Zero(t, hub.Publish("r1", Sample{Latitude: 1, Longitude: 2}))

	hub.SetPermission("r1", true)
	assert.Equal(t, 1, hub.Publish("r1", Sample{Latitude: 1, Longitude: 2}))
	got := <-sub.C
	assert.Equal(t, 1.0, got.Latitude)
}

func TestDeviceHub_DropsWhenSubscriberFull(t *testing.T) {
	hub := NewDeviceHub(10*time.Millisecond, 1, nil)
	hub.SetPermission("r1", true)
	_, err := hub.Subscribe("r1")
	require.NoError(t, err)

	assert.Equal(t, 1, hub.Publish("r1", Sample{Latitude: 1}))
	assert.Zero(t, hub.Publish("r1", Sample{Latitude: 2}))
}

func TestDeviceHub_UnsubscribeClosesOnce(t *testing.T) {
	hub := NewDeviceHub(10*time.Millisecond, 1, nil)
	sub, err := hub.Subscribe("r1")
	require.NoError(t, err)

	hub.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.NotPanics(t, func() { hub.Unsubscribe(sub) })
}

func TestDeviceHub_RequestPermissionHonoursContext(t *testing.T) {
	hub := NewDeviceHub(time.Minute, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	granted, err := hub.RequestPermission(ctx, "r1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, granted)
}

func TestDeviceHub_RecordedAnswerIsImmediate(t *testing.T) {
	hub := NewDeviceHub(time.Minute, 1, nil)
	hub.SetPermission("r1", true)

	granted, err := hub.RequestPermission(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, granted)
}
