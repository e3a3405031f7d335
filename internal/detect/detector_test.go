package detect

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/progress.report/internal/geometry"
)

var square = geometry.Polygon{
	geometry.Pt(10, 10), geometry.Pt(20, 10), geometry.Pt(20, 20), geometry.Pt(10, 20),
}

func TestStatic(t *testing.T) {
	d := Static{Outlines: []geometry.Polygon{square}}

	pts, err := d.DetectAt(context.Background(), nil, 15, 15)
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point(square), pts)

	_, err = d.DetectAt(context.Background(), nil, 50, 50)
	assert.ErrorIs(t, err, ErrDetectionEmpty)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.DetectAt(ctx, nil, 15, 15)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatic_ReturnsCopy(t *testing.T) {
	d := Static{Outlines: []geometry.Polygon{square.Clone()}}
	pts, err := d.DetectAt(context.Background(), nil, 15, 15)
	require.NoError(t, err)
	pts[0] = geometry.Pt(-1, -1)
	assert.Equal(t, geometry.Pt(10, 10), d.Outlines[0][0])
}

func TestLatest_EmptyResult(t *testing.T) {
	l := NewLatest(Func(func(context.Context, image.Image, float64, float64) ([]geometry.Point, error) {
		return nil, nil
	}), 0)
	_, err := l.DetectAt(context.Background(), nil, 1, 1)
	assert.ErrorIs(t, err, ErrDetectionEmpty)
}

func TestLatest_PassesErrors(t *testing.T) {
	boom := errors.New("boom")
	l := NewLatest(Func(func(context.Context, image.Image, float64, float64) ([]geometry.Point, error) {
		return nil, boom
	}), 0)
	_, err := l.DetectAt(context.Background(), nil, 1, 1)
	assert.ErrorIs(t, err, boom)
}

func TestLatest_CancelAndReplace(t *testing.T) {
	started := make(chan struct{})
	var calls int
	inner := Func(func(ctx context.Context, _ image.Image, x, y float64) ([]geometry.Point, error) {
		calls++
		if calls == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []geometry.Point{geometry.Pt(x, y), geometry.Pt(x+1, y), geometry.Pt(x, y+1)}, nil
	})
	l := NewLatest(inner, 0)

	first := make(chan error, 1)
	go func() {
		_, err := l.DetectAt(context.Background(), nil, 1, 1)
		first <- err
	}()
	<-started

	pts, err := l.DetectAt(context.Background(), nil, 5, 5)
	require.NoError(t, err)
	assert.Len(t, pts, 3)

	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first request was not cancelled")
	}
}

func TestLatest_Timeout(t *testing.T) {
	l := NewLatest(Func(func(ctx context.Context, _ image.Image, _, _ float64) ([]geometry.Point, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 10*time.Millisecond)
	_, err := l.DetectAt(context.Background(), nil, 1, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatest_Cancel(t *testing.T) {
	started := make(chan struct{})
	l := NewLatest(Func(func(ctx context.Context, _ image.Image, _, _ float64) ([]geometry.Point, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}), 0)

	done := make(chan error, 1)
	go func() {
		_, err := l.DetectAt(context.Background(), nil, 1, 1)
		done <- err
	}()
	<-started
	l.Cancel()
	assert.ErrorIs(t, <-done, ErrSuperseded)
}
