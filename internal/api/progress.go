package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/httputil"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/report"
	"github.com/banshee-data/progress.report/internal/tracker"
	"github.com/banshee-data/progress.report/internal/units"
)

// SnapshotRequest is the body of POST /api/snapshots. Values are in Unit,
// default cm.
type SnapshotRequest struct {
	Length     *float64 `json:"length,omitempty"`
	Girth      *float64 `json:"girth,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	PhotoRef   string   `json:"photo_ref,omitempty"`
}

// GoalRequest is the body of POST /api/goals.
type GoalRequest struct {
	Type        string    `json:"type"`
	TargetValue float64   `json:"target_value"`
	Unit        string    `json:"unit,omitempty"`
	TargetDate  time.Time `json:"target_date"`
}

func canonical(v *float64, unit string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if unit == "" {
		unit = units.CM
	}
	cm, err := units.Canonicalize(*v, unit)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// handleSnapshots handles GET/POST /api/snapshots
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.tracker.Snapshots())
	case http.MethodPost:
		s.createSnapshot(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	length, err := canonical(req.Length, req.Unit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	girth, err := canonical(req.Girth, req.Unit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	snap := s.tracker.NewSnapshot(length, girth)
	snap.Confidence = req.Confidence
	snap.Notes = req.Notes
	snap.PhotoRef = req.PhotoRef
	out, err := s.tracker.SaveSnapshot(r.Context(), snap)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, out)
}

// handleSnapshotByID handles DELETE /api/snapshots/:id
func (s *Server) handleSnapshotByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/snapshots/"), "/")
	if id == "" {
		httputil.BadRequest(w, "missing snapshot id")
		return
	}
	if r.Method != http.MethodDelete {
		httputil.MethodNotAllowed(w)
		return
	}
	out, err := s.tracker.DeleteSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Metrics())
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	weeks := s.tracker.Weekly()
	if weeks == nil {
		weeks = []analytics.Week{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"summary": s.tracker.Summary(),
		"weekly":  weeks,
	})
}

// axisParam reads ?axis=, defaulting to length. Only length and girth can
// be projected or charted.
func axisParam(r *http.Request) (measure.Kind, error) {
	a := r.URL.Query().Get("axis")
	if a == "" {
		return measure.Length, nil
	}
	k, err := measure.ParseKind(a)
	if err != nil || k == measure.Area {
		return "", fmt.Errorf("invalid axis %q: must be length or girth", a)
	}
	return k, nil
}

func (s *Server) showProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	axis, err := axisParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	steps, err := s.tracker.Projection(axis)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"axis":  axis,
		"steps": steps,
	})
}

// handleGoals handles GET/POST /api/goals
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.tracker.Goals())
	case http.MethodPost:
		s.createGoal(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	kind, err := measure.ParseKind(req.Type)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	target, err := canonical(&req.TargetValue, req.Unit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	g, out, err := s.tracker.CreateGoal(r.Context(), kind, *target, req.TargetDate)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{
		"goal":    g,
		"outcome": out,
	})
}

// handleGoalByID handles DELETE /api/goals/:id
func (s *Server) handleGoalByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/goals/"), "/")
	if id == "" {
		httputil.BadRequest(w, "missing goal id")
		return
	}
	if r.Method != http.MethodDelete {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.tracker.DeleteGoal(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Achievements())
}

// handleSettings handles GET/PUT /api/settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.tracker.Settings())
	case http.MethodPut:
		var req tracker.Settings
		if err := httputil.DecodeJSON(r.Body, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.tracker.UpdateSettings(r.Context(), req); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, s.tracker.Settings())
	default:
		httputil.MethodNotAllowed(w)
	}
}

// showReport handles GET /api/report?format=html|png&axis=length|girth
func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	axis, err := axisParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	d := s.reportData(axis)

	var buf bytes.Buffer
	var contentType string
	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		err = report.RenderHTML(&buf, d, report.HTMLOptions{AssetsHost: s.assetsHost})
		contentType = "text/html; charset=utf-8"
	case "png":
		err = report.RenderPNG(&buf, d)
		contentType = "image/png"
	default:
		httputil.BadRequest(w, fmt.Sprintf("invalid format %q: must be html or png", format))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}

// reportData gathers everything a report needs. A missing projection is
// not an error; the chart simply has no forecast.
func (s *Server) reportData(axis measure.Kind) report.Data {
	steps, _ := s.tracker.Projection(axis)
	return report.Data{
		Title:      "Progress report",
		Unit:       s.tracker.Settings().DisplayUnit,
		Axis:       axis,
		Snapshots:  s.tracker.Snapshots(),
		Projection: steps,
		Weeks:      s.tracker.Weekly(),
		Metrics:    s.tracker.Metrics(),
	}
}
