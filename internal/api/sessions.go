package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/progress.report/internal/annotation"
	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/detect"
	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/httputil"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
)

// MaxImageBytes bounds uploaded photos.
const MaxImageBytes = 16 << 20

// session is one photo being annotated. The engine is not safe for
// concurrent use, so every access holds mu. lastUsed is read without mu
// so pruning never waits on a click that is still detecting.
type session struct {
	id       string
	latest   *detect.Latest // nil without a detector
	lastUsed atomic.Int64   // unix nanoseconds

	mu     sync.Mutex
	engine *annotation.Engine
}

func (sess *session) touch(now time.Time) {
	sess.lastUsed.Store(now.UnixNano())
}

func (sess *session) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, sess.lastUsed.Load()))
}

func (sess *session) cancel() {
	if sess.latest != nil {
		sess.latest.Cancel()
	}
}

// SessionView is the JSON form of a session's annotation state.
type SessionView struct {
	ID              string                      `json:"id"`
	State           string                      `json:"state"`
	Tool            annotation.Tool             `json:"tool"`
	Pending         *geometry.Point             `json:"pending,omitempty"`
	ReferencePoints measure.ReferencePoints     `json:"reference_points"`
	Calibration     calibration.Calibration     `json:"calibration"`
	Measurements    []measure.ManualMeasurement `json:"measurements"`
	Outline         geometry.Polygon            `json:"outline,omitempty"`
	Overlay         annotation.Overlay          `json:"overlay"`
}

func (sess *session) view() SessionView {
	e := sess.engine
	v := SessionView{
		ID:              sess.id,
		State:           e.State().Name(),
		Tool:            e.Tool(),
		ReferencePoints: e.ReferencePoints(),
		Calibration:     e.Calibration(),
		Measurements:    e.Measurements(),
		Outline:         e.Outline(),
		Overlay:         e.Overlay(),
	}
	if p, ok := e.State().(annotation.AwaitingSecondPoint); ok {
		v.Pending = &p.Start
	}
	if v.Measurements == nil {
		v.Measurements = []measure.ManualMeasurement{}
	}
	if v.Overlay == nil {
		v.Overlay = annotation.Overlay{}
	}
	return v
}

type toolRequest struct {
	Tool string `json:"tool"`
}

type clickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type calibrateRequest struct {
	Axis     calibration.Axis `json:"axis"`
	RealSize float64          `json:"real_size"`
	Pixels   float64          `json:"pixels"`
}

type referenceSizeRequest struct {
	Axis calibration.Axis `json:"axis"`
	Size float64          `json:"size"`
}

type saveRequest struct {
	Confidence *float64 `json:"confidence,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	PhotoRef   string   `json:"photo_ref,omitempty"`
}

// handleSessions handles POST /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	sess := s.newSession()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	httputil.Created(w, sess.view())
}

func (s *Server) newSession() *session {
	sess := &session{id: uuid.New().String()}
	sess.touch(s.clock.Now())
	opts := annotation.Options{
		Resolver:       calibration.NewResolver(s.cfg.GetBaselinePixels()),
		ReferenceSizes: s.tracker.ReferenceSizes(),
		DisplayUnit:    s.tracker.Settings().DisplayUnit,
	}
	if s.detector != nil {
		sess.latest = detect.NewLatest(s.detector, s.cfg.GetDetectorTimeout())
		opts.Detector = sess.latest
	}
	sess.engine = annotation.NewEngine(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.sessions[sess.id] = sess
	monitoring.Diagf("annotation session %s started (%d open)", sess.id, len(s.sessions))
	return sess
}

// pruneLocked drops sessions idle for longer than the TTL.
func (s *Server) pruneLocked() {
	now := s.clock.Now()
	for id, sess := range s.sessions {
		if sess.idle(now) > s.sessionTTL {
			sess.cancel()
			delete(s.sessions, id)
		}
	}
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// handleSessionAction handles /api/sessions/:id[/action]
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	sess, ok := s.lookup(id)
	if !ok {
		httputil.NotFound(w, "session not found")
		return
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			s.withSession(w, sess, func() error { return nil })
		case http.MethodDelete:
			sess.cancel()
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			httputil.MethodNotAllowed(w)
		}
		return
	}

	if action == "overlay" {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		sess.mu.Lock()
		v := sess.view()
		sess.mu.Unlock()
		httputil.WriteJSONOK(w, v.Overlay)
		return
	}

	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	switch action {
	case "image":
		s.setImage(w, r, sess)
	case "tool":
		var req toolRequest
		if !decode(w, r, &req) {
			return
		}
		tool, err := annotation.ParseTool(req.Tool)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		s.withSession(w, sess, func() error {
			sess.engine.SelectTool(tool)
			return nil
		})
	case "click":
		var req clickRequest
		if !decode(w, r, &req) {
			return
		}
		// a new gesture supersedes any detection still in flight
		sess.cancel()
		s.withSession(w, sess, func() error {
			return sess.engine.Click(r.Context(), geometry.Pt(req.X, req.Y))
		})
	case "calibrate":
		var req calibrateRequest
		if !decode(w, r, &req) {
			return
		}
		if !validAxis(w, req.Axis) {
			return
		}
		s.withSession(w, sess, func() error {
			_, err := sess.engine.CalibrateFromReference(req.Axis, req.RealSize, req.Pixels)
			return err
		})
	case "reference-size":
		var req referenceSizeRequest
		if !decode(w, r, &req) {
			return
		}
		if !validAxis(w, req.Axis) {
			return
		}
		s.withSession(w, sess, func() error {
			return sess.engine.SetReferenceSize(req.Axis, req.Size)
		})
	case "clear":
		s.withSession(w, sess, func() error {
			sess.engine.Clear()
			return nil
		})
	case "draft":
		var req saveRequest
		if !decodeOptional(w, r, &req) {
			return
		}
		sess.mu.Lock()
		snap := sess.engine.Draft(s.clock.Now(), req.Confidence)
		sess.touch(s.clock.Now())
		sess.mu.Unlock()
		snap.Notes, snap.PhotoRef = req.Notes, req.PhotoRef
		httputil.WriteJSONOK(w, snap)
	case "save":
		s.saveSession(w, r, sess)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown session action %q", action))
	}
}

// withSession runs fn under the session lock and replies with the
// resulting view, or the mapped error.
func (s *Server) withSession(w http.ResponseWriter, sess *session, fn func() error) {
	sess.mu.Lock()
	err := fn()
	sess.touch(s.clock.Now())
	v := sess.view()
	sess.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, v)
}

func (s *Server) setImage(w http.ResponseWriter, r *http.Request, sess *session) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxImageBytes+1))
	if err != nil {
		httputil.BadRequest(w, "failed to read image")
		return
	}
	if len(data) > MaxImageBytes {
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("unsupported image: %v", err))
		return
	}
	monitoring.Diagf("session %s: %s image %v", sess.id, format, img.Bounds().Size())
	sess.cancel()
	s.withSession(w, sess, func() error {
		sess.engine.SetImage(img)
		return nil
	})
}

// saveSession drafts a snapshot from the session's measurements and
// persists it. The session is cleared once the save succeeds.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session) {
	var req saveRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.clock.Now())

	snap := sess.engine.Draft(s.clock.Now(), req.Confidence)
	snap.Notes, snap.PhotoRef = req.Notes, req.PhotoRef
	out, err := s.tracker.SaveSnapshot(r.Context(), snap)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.engine.Clear()
	httputil.Created(w, out)
}

func validAxis(w http.ResponseWriter, a calibration.Axis) bool {
	if a != calibration.AxisLength && a != calibration.AxisGirth {
		httputil.BadRequest(w, fmt.Sprintf("invalid axis %q: must be length or girth", a))
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r.Body, v); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return false
	}
	return true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		writeError(w, err)
		return
	}
	httputil.BadRequest(w, err.Error())
}
