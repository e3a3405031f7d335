// Package api is the HTTP JSON surface over the tracker and the per-session
// annotation engines.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/annotation"
	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/config"
	"github.com/banshee-data/progress.report/internal/detect"
	"github.com/banshee-data/progress.report/internal/goals"
	"github.com/banshee-data/progress.report/internal/httputil"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
	"github.com/banshee-data/progress.report/internal/report"
	"github.com/banshee-data/progress.report/internal/store"
	"github.com/banshee-data/progress.report/internal/timeutil"
	"github.com/banshee-data/progress.report/internal/tracker"
	"github.com/banshee-data/progress.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultSessionTTL is how long an idle annotation session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Options configures a Server. Tracker is required.
type Options struct {
	Tracker  *tracker.Tracker
	Config   *config.Config
	Detector detect.Detector
	Clock    timeutil.Clock

	// SessionTTL bounds idle annotation sessions. Zero selects
	// DefaultSessionTTL.
	SessionTTL time.Duration

	// AssetsHost overrides where report pages load echarts from.
	AssetsHost string
}

type Server struct {
	tracker    *tracker.Tracker
	cfg        *config.Config
	detector   detect.Detector
	clock      timeutil.Clock
	sessionTTL time.Duration
	assetsHost string

	mu       sync.Mutex
	sessions map[string]*session
}

func NewServer(opts Options) *Server {
	s := &Server{
		tracker:    opts.Tracker,
		cfg:        opts.Config,
		detector:   opts.Detector,
		clock:      opts.Clock,
		sessionTTL: opts.SessionTTL,
		assetsHost: opts.AssetsHost,
		sessions:   make(map[string]*session),
	}
	if s.cfg == nil {
		s.cfg = config.EmptyConfig()
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/snapshots/", s.handleSnapshotByID)
	mux.HandleFunc("/api/metrics", s.showMetrics)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/projection", s.showProjection)
	mux.HandleFunc("/api/goals", s.handleGoals)
	mux.HandleFunc("/api/goals/", s.handleGoalByID)
	mux.HandleFunc("/api/achievements", s.listAchievements)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionAction)
	return mux
}

// Close aborts outstanding detections and drops every session.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.cancel()
		delete(s.sessions, id)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, httputil.ErrBodyTooLarge):
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, measure.ErrInvalidSnapshot),
		errors.Is(err, goals.ErrInvalidGoal),
		errors.Is(err, tracker.ErrInvalidSettings),
		errors.Is(err, calibration.ErrInvalidReference),
		errors.Is(err, analytics.ErrInsufficientData),
		errors.Is(err, report.ErrNoData),
		errors.Is(err, detect.ErrDetectionEmpty):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, annotation.ErrToolStateConflict),
		errors.Is(err, annotation.ErrNoTool),
		errors.Is(err, calibration.ErrUncalibrated),
		errors.Is(err, detect.ErrSuperseded):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, annotation.ErrNoDetector):
		httputil.WriteJSONError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, "outline detection timed out")
	case errors.Is(err, store.ErrStorageFailure):
		monitoring.Opsf("storage failure: %v", err)
		httputil.InternalServerError(w, "storage failure")
	default:
		monitoring.Opsf("request failed: %v", err)
		httputil.InternalServerError(w, "internal error")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sizes := s.tracker.ReferenceSizes()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":               s.tracker.Settings().DisplayUnit,
		"baseline_pixels":     s.cfg.GetBaselinePixels(),
		"reference_length_cm": sizes[calibration.AxisLength],
		"reference_girth_cm":  sizes[calibration.AxisGirth],
		"detector":            s.detector != nil,
		"version":             version.Version,
	})
}
