package detect

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/httputil"
)

func TestRemote_DetectAt(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"points": [[1, 2], [3, 4], [5, 6]]}`)
	r := NewRemote(mock, "http://detector.local/outline")

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)

	pts, err := r.DetectAt(context.Background(), img, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}, pts)

	require.Equal(t, 1, mock.RequestCount())
	var sent remoteRequest
	require.NoError(t, json.Unmarshal(mock.Body(0), &sent))
	assert.Equal(t, 2.0, sent.X)
	assert.Equal(t, 3.0, sent.Y)
	assert.NotEmpty(t, sent.Image)
	assert.Equal(t, "application/json", mock.Requests[0].Header.Get("Content-Type"))
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty", http.StatusOK, `{"points": []}`, ErrDetectionEmpty},
		{"server error", http.StatusInternalServerError, `boom`, nil},
		{"bad json", http.StatusOK, `{`, nil},
		{"service error", http.StatusOK, `{"error": "no mask"}`, nil},
		{"bad point", http.StatusOK, `{"points": [[1]]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRemote(httputil.NewMockHTTPClient().AddResponse(tt.status, tt.body), "http://d")
			_, err := r.DetectAt(context.Background(), nil, 0, 0)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRemote_TransportError(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	r := NewRemote(httputil.NewMockHTTPClient().AddErrorResponse(boom), "http://d")
	_, err := r.DetectAt(context.Background(), nil, 0, 0)
	assert.ErrorIs(t, err, boom)
}
