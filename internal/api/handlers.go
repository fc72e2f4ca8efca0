package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	applog "canvas-sync/internal/logging"
	csync "canvas-sync/internal/sync"
)

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	p, err := h.views.Dashboard(r.Context(), ownerFrom(r.Context()))
	h.writeView(w, r, p, err)
}

func (h *Handler) assignments(w http.ResponseWriter, r *http.Request) {
	p, err := h.views.Assignments(r.Context(), ownerFrom(r.Context()))
	h.writeView(w, r, p, err)
}

func (h *Handler) announcements(w http.ResponseWriter, r *http.Request) {
	p, err := h.views.Announcements(r.Context(), ownerFrom(r.Context()))
	h.writeView(w, r, p, err)
}

func (h *Handler) grades(w http.ResponseWriter, r *http.Request) {
	p, err := h.views.Grades(r.Context(), ownerFrom(r.Context()))
	h.writeView(w, r, p, err)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.views.Profile(r.Context(), ownerFrom(r.Context()))
	h.writeView(w, r, p, err)
}

func (h *Handler) courseDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := courseParam(w, r)
	if !ok {
		return
	}
	p, err := h.views.CourseDetail(r.Context(), ownerFrom(r.Context()), id)
	h.writeView(w, r, p, err)
}

func (h *Handler) upcoming(w http.ResponseWriter, r *http.Request) {
	id, ok := courseParam(w, r)
	if !ok {
		return
	}
	// 0 lets the service use its configured default
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	p, err := h.views.Upcoming(r.Context(), ownerFrom(r.Context()), id, days)
	h.writeView(w, r, p, err)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	id, ok := courseParam(w, r)
	if !ok {
		return
	}
	p, err := h.views.Performance(r.Context(), ownerFrom(r.Context()), id)
	h.writeView(w, r, p, err)
}

func (h *Handler) snapshotCourses(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	list, err := h.snapshots.SnapshotCourses(r.Context(), ownerFrom(r.Context()), status)
	h.writeView(w, r, list, err)
}

func (h *Handler) snapshotAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := courseParam(w, r)
	if !ok {
		return
	}
	list, err := h.snapshots.SnapshotAssignments(r.Context(), ownerFrom(r.Context()), id)
	h.writeView(w, r, list, err)
}

type syncResponse struct {
	Report csync.RunReport `json:"report"`
	Error  string          `json:"error,omitempty"`
}

// sync runs a reconciliation. Query flags: dry_run (default false) and
// stale (default true).
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	opts := csync.RunOptions{DetectStale: true}
	var err error
	if opts.DryRun, err = boolParam(r, "dry_run", false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.DetectStale, err = boolParam(r, "stale", true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner := ownerFrom(r.Context())
	rep, err := h.runner.Run(r.Context(), owner, opts)
	if err == nil {
		writeJSON(w, http.StatusOK, syncResponse{Report: rep})
		return
	}

	var pe *csync.PersistenceError
	if errors.As(err, &pe) {
		applog.With(r.Context(), h.logger).Error("sync not persisted", zap.String("owner", owner), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, syncResponse{Report: rep, Error: applog.SanitizeError(err)})
		return
	}
	h.writeView(w, r, nil, err)
}

type credentialsRequest struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}

func (h *Handler) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.credentials.Save(r.Context(), ownerFrom(r.Context()), canvas.Credentials{BaseURL: req.URL, APIKey: req.APIKey})
	if err != nil {
		h.writeView(w, r, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func courseParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return 0, false
	}
	return id, true
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return b, nil
}
