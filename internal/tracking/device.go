package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sample is one device position reading.
type Sample struct {
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

// Subscription is a live feed of one responder's samples. C is closed when
// the subscription ends.
type Subscription struct {
	ID          string
	ResponderID string
	C           <-chan Sample
}

// PositionProvider is the device side of tracking.
type PositionProvider interface {
	RequestPermission(ctx context.Context, responderID string) (bool, error)
	Subscribe(responderID string) (Subscription, error)
	Unsubscribe(sub Subscription)
}

// DeviceHub is a PositionProvider fed by responder devices over the API.
// Devices record a permission decision and push samples; the hub fans
// samples out to every open subscription of that responder.
type DeviceHub struct {
	mu          sync.Mutex
	permissions map[string]bool
	waiters     map[string]chan struct{}
	subs        map[string]map[string]chan Sample

	timeout time.Duration
	buffer  int
	logger  *zap.Logger
}

// NewDeviceHub creates a hub. timeout bounds how long RequestPermission waits
// for a device that has not answered yet.
func NewDeviceHub(timeout time.Duration, buffer int, logger *zap.Logger) *DeviceHub {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceHub{
		permissions: make(map[string]bool),
		waiters:     make(map[string]chan struct{}),
		subs:        make(map[string]map[string]chan Sample),
		timeout:     timeout,
		buffer:      buffer,
		logger:      logger,
	}
}

// SetPermission records the device's answer. Revoking closes the responder's
// open subscriptions.
func (h *DeviceHub) SetPermission(responderID string, granted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissions[responderID] = granted
	if w, ok := h.waiters[responderID]; ok {
		close(w)
		delete(h.waiters, responderID)
	}
	if !granted {
		for id, ch := range h.subs[responderID] {
			close(ch)
			delete(h.subs[responderID], id)
		}
		delete(h.subs, responderID)
	}
}

// RequestPermission returns the recorded decision, waiting briefly for one
// when the device has not answered. No answer in time counts as denied.
func (h *DeviceHub) RequestPermission(ctx context.Context, responderID string) (bool, error) {
	h.mu.Lock()
	if granted, ok := h.permissions[responderID]; ok {
		h.mu.Unlock()
		return granted, nil
	}
	wait, ok := h.waiters[responderID]
	if !ok {
		wait = make(chan struct{})
		h.waiters[responderID] = wait
	}
	h.mu.Unlock()

	if h.timeout <= 0 {
		return false, nil
	}
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-wait:
		h.mu.Lock()
		granted := h.permissions[responderID]
		h.mu.Unlock()
		return granted, nil
	case <-timer.C:
		h.logger.Info("location permission request timed out", zap.String("responder_id", responderID))
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Subscribe opens a sample feed for the responder.
func (h *DeviceHub) Subscribe(responderID string) (Subscription, error) {
	ch := make(chan Sample, h.buffer)
	id := uuid.NewString()

	h.mu.Lock()
	if h.subs[responderID] == nil {
		h.subs[responderID] = make(map[string]chan Sample)
	}
	h.subs[responderID][id] = ch
	h.mu.Unlock()

	return Subscription{ID: id, ResponderID: responderID, C: ch}, nil
}

// Unsubscribe closes the feed. Unknown or already closed subscriptions are ignored.
func (h *DeviceHub) Unsubscribe(sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.subs[sub.ResponderID]
	if !ok {
		return
	}
	if ch, ok := byID[sub.ID]; ok {
		close(ch)
		delete(byID, sub.ID)
	}
	if len(byID) == 0 {
		delete(h.subs, sub.ResponderID)
	}
}

// Publish hands a sample to every subscription of the responder and returns
// how many received it. A full subscriber buffer drops the sample for that
// subscriber; the next sample supersedes it anyway.
func (h *DeviceHub) Publish(responderID string, sample Sample) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if granted := h.permissions[responderID]; !granted {
		return 0
	}
	delivered := 0
	for id, ch := range h.subs[responderID] {
		select {
		case ch <- sample:
			delivered++
		default:
			h.logger.Debug("dropping position sample for slow subscriber",
				zap.String("responder_id", responderID),
				zap.String("subscription_id", id))
		}
	}
	return delivered
}
