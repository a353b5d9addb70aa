// Package tracking streams a responder's position into the report being worked.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/geo"
	"github.com/spec-kit/defect-dispatch/internal/observability"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// DefaultDistanceThresholdMeters is used when no threshold is configured.
const DefaultDistanceThresholdMeters = 50.0

// LocationWriter overwrites a report's live location. It must refuse with a
// conflict once the report is no longer in progress.
type LocationWriter interface {
	UpdateLiveLocation(ctx context.Context, id string, location domain.LiveLocation) error
}

// Handle is an active tracking session. It is owned by whoever called Start
// and must be passed back to Stop.
type Handle struct {
	ReportID    string
	ResponderID string

	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Done is closed when the session's receive loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Finished reports whether the receive loop has exited.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Tracker starts and stops per-report tracking sessions.
type Tracker struct {
	writer    LocationWriter
	positions PositionProvider
	threshold float64
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewTracker builds a tracker. A non-positive threshold falls back to the default.
func NewTracker(writer LocationWriter, positions PositionProvider, thresholdMeters float64, logger *zap.Logger, metrics *observability.Metrics) *Tracker {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDistanceThresholdMeters
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		writer:    writer,
		positions: positions,
		threshold: thresholdMeters,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start asks for location permission and launches the receive loop. The loop
// outlives ctx's cancellation; only Stop or the report leaving in_progress ends it.
func (t *Tracker) Start(ctx context.Context, reportID, responderID string) (*Handle, error) {
	granted, err := t.positions.RequestPermission(ctx, responderID)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, apperrors.NewPermissionDenied("location permission not granted", map[string]any{
			"report_id":    reportID,
			"responder_id": responderID,
		})
	}

	sub, err := t.positions.Subscribe(responderID)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		ReportID:    reportID,
		ResponderID: responderID,
		sub:         sub,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	t.metrics.TrackingStarted()
	t.logger.Info("tracking started", zap.String("report_id", reportID), zap.String("responder_id", responderID))
	go t.run(loopCtx, h)
	return h, nil
}

// Stop requests the session to end and waits for its loop to exit. Calling
// it more than once is a no-op.
func (t *Tracker) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		t.positions.Unsubscribe(h.sub)
	})
	<-h.done
}

func (t *Tracker) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer t.metrics.TrackingStopped()

	log := t.logger.With(zap.String("report_id", h.ReportID), zap.String("responder_id", h.ResponderID))
	var last *geo.Point

	for {
		select {
		case <-ctx.Done():
			log.Info("tracking stopped")
			return
		case sample, ok := <-h.sub.C:
			if !ok {
				log.Info("position feed closed")
				return
			}
			point := geo.Point{Latitude: sample.Latitude, Longitude: sample.Longitude}
			if err := point.Validate(); err != nil {
				t.metrics.RecordSample("invalid")
				log.Debug("ignoring invalid position sample", zap.Error(err))
				continue
			}
			if last != nil {
				moved, _ := geo.HaversineMeters(*last, point)
				if moved <= t.threshold {
					t.metrics.RecordSample("skipped")
					continue
				}
			}
			if ctx.Err() != nil {
				return
			}

			recordedAt := sample.RecordedAt
			if recordedAt.IsZero() {
				recordedAt = t.now()
			}
			err := t.writer.UpdateLiveLocation(ctx, h.ReportID, domain.LiveLocation{
				Latitude:   point.Latitude,
				Longitude:  point.Longitude,
				RecordedAt: recordedAt.UTC(),
			})
			switch {
			case err == nil:
				t.metrics.RecordSample("written")
				last = &point
			case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrNotFound):
				t.metrics.RecordSample("rejected")
				log.Info("report no longer in progress; ending tracking", zap.Error(err))
				return
			default:
				t.metrics.RecordSample("failed")
				log.Warn("failed to publish live location", zap.Error(err))
			}
		}
	}
}
