package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/dashboard"
	applog "canvas-sync/internal/logging"
	csync "canvas-sync/internal/sync"
	"canvas-sync/internal/view"
)

type fakeViews struct {
	err      error
	owner    string
	courseID int64
	days     int
}

func (f *fakeViews) Dashboard(_ context.Context, owner string) (view.DashboardPayload, error) {
	f.owner = owner
	if f.err != nil {
		return view.FailedDashboard(applog.SanitizeError(f.err), view.Timing{}), f.err
	}
	return view.DashboardPayload{Courses: []view.CourseCard{{ID: 1, Name: "CS 101"}}, Error: "1 of 2 courses failed: History"}, nil
}

func (f *fakeViews) Assignments(_ context.Context, owner string) (view.AssignmentsPayload, error) {
	f.owner = owner
	return view.AssignmentsPayload{}, f.err
}

func (f *fakeViews) Announcements(_ context.Context, owner string) (view.AnnouncementsPayload, error) {
	f.owner = owner
	return view.AnnouncementsPayload{}, f.err
}

func (f *fakeViews) Grades(_ context.Context, owner string) (view.GradesPayload, error) {
	f.owner = owner
	return view.GradesPayload{}, f.err
}

func (f *fakeViews) Profile(_ context.Context, owner string) (view.ProfilePayload, error) {
	f.owner = owner
	return view.ProfilePayload{}, f.err
}

func (f *fakeViews) CourseDetail(_ context.Context, owner string, courseID int64) (view.CourseDetailPayload, error) {
	f.owner, f.courseID = owner, courseID
	if f.err != nil {
		return view.FailedCourseDetail(applog.SanitizeError(f.err), view.Timing{}), f.err
	}
	return view.CourseDetailPayload{}, nil
}

func (f *fakeViews) Upcoming(_ context.Context, owner string, courseID int64, days int) (view.UpcomingPayload, error) {
	f.owner, f.courseID, f.days = owner, courseID, days
	return view.UpcomingPayload{CourseID: courseID, Days: days}, f.err
}

func (f *fakeViews) Performance(_ context.Context, owner string, courseID int64) (view.PerformancePayload, error) {
	f.owner, f.courseID = owner, courseID
	return view.PerformancePayload{}, f.err
}

type fakeRunner struct {
	opts csync.RunOptions
	rep  csync.RunReport
	err  error
}

func (f *fakeRunner) Run(_ context.Context, owner string, opts csync.RunOptions) (csync.RunReport, error) {
	f.opts = opts
	f.rep.Owner = owner
	return f.rep, f.err
}

type fakeSnapshots struct {
	status   string
	courseID int64
}

func (f *fakeSnapshots) SnapshotCourses(_ context.Context, _ string, status string) ([]csync.CourseSnapshot, error) {
	f.status = status
	return []csync.CourseSnapshot{}, nil
}

func (f *fakeSnapshots) SnapshotAssignments(_ context.Context, _ string, courseID int64) ([]csync.AssignmentSnapshot, error) {
	f.courseID = courseID
	return []csync.AssignmentSnapshot{}, nil
}

type fakeSaver struct {
	saved canvas.Credentials
}

func (f *fakeSaver) Save(_ context.Context, owner string, creds canvas.Credentials) error {
	if err := creds.Validate(); err != nil {
		return &credentials.CredentialError{Owner: owner, Err: err}
	}
	f.saved = creds
	return nil
}

type fixture struct {
	views     *fakeViews
	runner    *fakeRunner
	snapshots *fakeSnapshots
	saver     *fakeSaver
	handler   http.Handler
}

func newFixture() *fixture {
	f := &fixture{views: &fakeViews{}, runner: &fakeRunner{}, snapshots: &fakeSnapshots{}, saver: &fakeSaver{}}
	f.handler = NewRouter(Deps{Views: f.views, Runner: f.runner, Snapshots: f.snapshots, Credentials: f.saver})
	return f
}

func (f *fixture) do(method, target, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(DefaultOwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(applog.TraceHeader))
}

func TestOwnerHeader(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/dashboard", "a/b", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/dashboard", " owner-1 ", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", f.views.owner)
}

func TestPartialFailureIsOK(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/api/dashboard", "owner-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "1 of 2 courses failed: History", body["error"])
	assert.Len(t, body["courses"], 1)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		needsSetup bool
	}{
		{"needs setup", &credentials.CredentialError{Owner: "o", Err: fmt.Errorf("%w: no document", credentials.ErrNeedsSetup)}, http.StatusPreconditionFailed, true},
		{"broken credentials", &credentials.CredentialError{Owner: "o", Err: credentials.ErrOpenFailed}, http.StatusInternalServerError, false},
		{"unknown course", fmt.Errorf("course 9: %w", dashboard.ErrCourseNotFound), http.StatusNotFound, false},
		{"upstream", &canvas.FetchError{Endpoint: "courses", Status: 401}, http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.views.err = tt.err
			rec := f.do(http.MethodGet, "/api/courses/9", "owner-1", "")
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, []any{}, body["assignments"])
			assert.Equal(t, []any{}, body["teachers"])
			assert.Contains(t, body, "timing")
			if tt.needsSetup {
				assert.Equal(t, true, body["needsSetup"])
			} else {
				assert.NotContains(t, body, "needsSetup")
			}
		})
	}
}

func TestFailedDashboardKeepsShape(t *testing.T) {
	f := newFixture()
	f.views.err = &credentials.CredentialError{Owner: "o", Err: fmt.Errorf("%w: no document", credentials.ErrNeedsSetup)}

	rec := f.do(http.MethodGet, "/api/dashboard", "owner-1", "")
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []any{}, body["courses"])
	assert.Equal(t, []any{}, body["assignments"])
	assert.Equal(t, []any{}, body["announcements"])
	assert.Equal(t, true, body["needsSetup"])
	assert.NotEmpty(t, body["error"])
}

func TestCourseRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/api/courses/abc", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/courses/42/upcoming?days=14", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), f.views.courseID)
	assert.Equal(t, 14, f.views.days)

	rec = f.do(http.MethodGet, "/api/courses/42/upcoming", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.views.days)

	rec = f.do(http.MethodGet, "/api/courses/42/upcoming?days=-1", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/courses/7/performance", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), f.views.courseID)
}

func TestSnapshotRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/api/snapshot/courses?status=active", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", f.snapshots.status)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/snapshot/courses/5/assignments", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), f.snapshots.courseID)
}

func TestSync(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/sync", "owner-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csync.RunOptions{DetectStale: true}, f.runner.opts)
	report := decode(t, rec)["report"].(map[string]any)
	assert.Equal(t, "owner-1", report["owner"])

	rec = f.do(http.MethodPost, "/api/sync?dry_run=true&stale=false", "owner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csync.RunOptions{DryRun: true}, f.runner.opts)

	rec = f.do(http.MethodPost, "/api/sync?dry_run=maybe", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/sync", "owner-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSyncPersistenceFailureKeepsReport(t *testing.T) {
	f := newFixture()
	f.runner.rep = csync.RunReport{RunID: "run-1", Courses: csync.Report{EntityType: csync.EntityCourses, Inserted: 2}}
	f.runner.err = errors.Join(&csync.PersistenceError{EntityType: csync.EntityCourses, Err: errors.New("connection reset")})

	rec := f.do(http.MethodPost, "/api/sync", "owner-1", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["error"], "persist courses")
	assert.Equal(t, "run-1", body["report"].(map[string]any)["runId"])
}

func TestSaveCredentials(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/api/credentials", "owner-1", `{"url":"canvas.example.edu","apiKey":"k"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "k", f.saver.saved.APIKey)

	rec = f.do(http.MethodPut, "/api/credentials", "owner-1", `{"url":"canvas.example.edu"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/credentials", "owner-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNilDependenciesAreNotMounted(t *testing.T) {
	h := NewRouter(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(DefaultOwnerHeader, "owner-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
