package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"

	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/httputil"
	"github.com/banshee-data/progress.report/internal/monitoring"
)

// maxResponseBytes bounds the detector reply.
const maxResponseBytes = 4 << 20

// Remote calls an outline-detection service over HTTP. The image is sent as
// base64 PNG together with the clicked point; the service answers with a
// list of [x, y] pairs.
type Remote struct {
	Client httputil.HTTPClient
	URL    string
}

// NewRemote returns a Remote posting to url. A nil client uses
// http.DefaultClient.
func NewRemote(client httputil.HTTPClient, url string) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{Client: client, URL: url}
}

type remoteRequest struct {
	Image string  `json:"image"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type remoteResponse struct {
	Points [][]float64 `json:"points"`
	Error  string      `json:"error,omitempty"`
}

// DetectAt implements Detector.
func (r *Remote) DetectAt(ctx context.Context, img image.Image, x, y float64) ([]geometry.Point, error) {
	payload := remoteRequest{X: x, Y: y}
	if img != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		payload.Image = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read detector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("detector: %s", out.Error)
	}

	pts := make([]geometry.Point, 0, len(out.Points))
	for i, p := range out.Points {
		if len(p) != 2 {
			return nil, fmt.Errorf("detector point %d: want 2 coordinates, got %d", i, len(p))
		}
		pts = append(pts, geometry.Pt(p[0], p[1]))
	}
	if len(pts) == 0 {
		return nil, ErrDetectionEmpty
	}
	monitoring.Diagf("detector returned %d points for (%.1f, %.1f)", len(pts), x, y)
	return pts, nil
}
