package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleNotification() Notification {
	return Notification{
		ID:         "n1",
		Kind:       KindResponderEnRoute,
		ReportID:   "r1",
		EventID:    "e1",
		Recipients: []string{"reporter-1"},
		Message:    "a responder is on the way",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLogChannel_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewLogChannel(zap.New(core))

	require.NoError(t, ch.Send(context.Background(), sampleNotification()))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "r1", fields["report_id"])
	assert.Equal(t, string(KindResponderEnRoute), fields["kind"])
}

func TestWebhookChannel_PostsJSON(t *testing.T) {
	received := make(chan Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"))
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			received <- n
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, time.Second)
	require.NoError(t, ch.Send(context.Background(), sampleNotification()))

	select {
	case n := <-received:
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, []string{"reporter-1"}, n.Recipients)
	case <-time.After(time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookChannel_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 400)))
	}))
	defer srv.Close()

	err := NewWebhookChannel(srv.URL, time.Second).Send(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}

type recordingPublisher struct {
	err      error
	channel  string
	messages [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	if raw, ok := message.([]byte); ok {
		p.messages = append(p.messages, raw)
	}
	if p.err != nil {
		return redis.NewIntResult(0, p.err)
	}
	return redis.NewIntResult(1, nil)
}

func TestRedisChannel_PublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	ch := NewRedisChannel(pub, "dispatch.notifications")
	assert.Equal(t, "redis", ch.Name())

	require.NoError(t, ch.Send(context.Background(), sampleNotification()))
	assert.Equal(t, "dispatch.notifications", pub.channel)
	require.Len(t, pub.messages, 1)

	var got Notification
	require.NoError(t, json.Unmarshal(pub.messages[0], &got))
	want := sampleNotification()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.ReportID, got.ReportID)
	assert.Equal(t, want.Recipients, got.Recipients)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisChannel_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("connection refused")}
	err := NewRedisChannel(pub, "dispatch.notifications").Send(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
