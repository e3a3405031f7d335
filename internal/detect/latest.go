package detect

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/banshee-data/progress.report/internal/geometry"
)

// Latest serialises overlapping detection requests by cancel-and-replace:
// starting a request cancels the one still in flight, and a request that
// finishes after being replaced returns ErrSuperseded instead of its result.
type Latest struct {
	inner   Detector
	timeout time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewLatest wraps d. A positive timeout bounds each request.
func NewLatest(d Detector, timeout time.Duration) *Latest {
	return &Latest{inner: d, timeout: timeout}
}

// DetectAt implements Detector.
func (l *Latest) DetectAt(ctx context.Context, img image.Image, x, y float64) ([]geometry.Point, error) {
	var cctx context.Context
	var cancel context.CancelFunc
	if l.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, l.timeout)
	} else {
		cctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	pts, err := l.inner.DetectAt(cctx, img, x, y)

	l.mu.Lock()
	current := gen == l.gen
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !current {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, ErrDetectionEmpty
	}
	return pts, nil
}

// Cancel aborts the request in flight, if any.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
