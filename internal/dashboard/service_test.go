package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/view"
)

var now = time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)

func fakeCanvas(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/api/v1/courses": `[
			{"id": 1, "name": "CS 101", "course_code": "CS101",
			 "enrollments": [{"type": "student", "computed_current_score": 88.5, "computed_current_grade": "B+"}]},
			{"id": 2, "name": "History", "course_code": "HIS", "end_at": "2024-01-01T00:00:00Z"}
		]`,
		"/api/v1/courses/1": `{"id": 1, "name": "CS 101", "course_code": "CS101", "syllabus_body": "<p>Read</p>",
			"enrollments": [{"type": "student", "computed_final_score": 91, "computed_final_grade": "A-"}],
			"teachers": [{"id": 5, "display_name": "Dr. Ada"}]}`,
		"/api/v1/courses/1/assignments": `[
			{"id": 10, "name": "Undated"},
			{"id": 11, "name": "Soon", "due_at": "2024-02-17T23:59:00Z", "points_possible": 10},
			{"id": 12, "name": "Graded", "due_at": "2024-02-10T23:59:00Z", "points_possible": 20},
			{"id": 13, "name": "Far", "due_at": "2024-06-01T00:00:00Z"}
		]`,
		"/api/v1/courses/1/students/submissions": `[{"id": 1, "assignment_id": 12, "score": 18, "submitted_at": "2024-02-09T00:00:00Z"}]`,
		"/api/v1/users/self/profile":             `{"id": 77, "name": "Grace Student", "primary_email": "g@example.edu"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/courses/2/assignments":
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "/api/v1/courses/2/students/submissions":
			w.WriteHeader(http.StatusForbidden)
			return
		case "/api/v1/announcements":
			if r.URL.Query().Get("context_codes[]") == "course_1" {
				_, _ = w.Write([]byte(`[{"id": 3, "title": "Welcome", "posted_at": "2024-02-14T08:00:00Z", "context_code": "course_1"}]`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(resolver credentials.Resolver, client *canvas.Client) *Service {
	return New(resolver, client,
		aggregate.New(concurrency.DefaultOptions(), nil),
		view.NewBuilder(func() time.Time { return now }),
		canvas.FetchOptions{}, DefaultWindows(), nil)
}

func serviceFor(t *testing.T) *Service {
	srv := fakeCanvas(t)
	return newService(credentials.StaticResolver{Credentials: canvas.Credentials{BaseURL: srv.URL, APIKey: "k"}}, canvas.New(nil, nil))
}

func TestDashboardPartialFailure(t *testing.T) {
	p, err := serviceFor(t).Dashboard(context.Background(), "owner-1")
	require.NoError(t, err)

	require.Len(t, p.Courses, 2)
	assert.Empty(t, p.Courses[0].Error)
	assert.Equal(t, 88.5, *p.Courses[0].Grade.Score)
	assert.Contains(t, p.Courses[1].Error, "assignments:")
	assert.Contains(t, p.Error, "1 of 2 courses failed")

	names := []string{}
	for _, a := range p.Assignments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Graded", "Soon", "Undated"}, names)
	require.NotNil(t, p.Assignments[0].Submission)
	assert.Equal(t, "CS 101", p.Assignments[0].CourseName)

	require.Len(t, p.Announcements, 1)
	assert.Equal(t, "Welcome", p.Announcements[0].Title)

	for _, stage := range []string{view.StageCredentials, view.StageCourses, view.StageAssignments, view.StageAnnouncements, view.StageProcessing} {
		assert.Contains(t, p.Timing.Sections, stage)
	}
}

func TestNeedsSetupIsReturned(t *testing.T) {
	s := newService(credentials.StaticResolver{}, canvas.New(nil, nil))

	p, err := s.Dashboard(context.Background(), "owner-1")
	require.Error(t, err)
	assert.True(t, credentials.NeedsSetup(err))
	assert.NotNil(t, p.Courses)
	assert.NotEmpty(t, p.Error)

	_, err = s.Performance(context.Background(), "owner-1", 1)
	assert.True(t, credentials.NeedsSetup(err))
}

func TestPanicBecomesGenericFailure(t *testing.T) {
	s := newService(credentials.StaticResolver{Credentials: canvas.Credentials{BaseURL: "https://canvas.example.edu", APIKey: "k"}}, nil)

	p, err := s.Dashboard(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, genericFailure, p.Error)
	assert.Empty(t, p.Courses)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"courses":[]`)
}

func TestCourseListFailureIsCarriedInPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	s := newService(credentials.StaticResolver{Credentials: canvas.Credentials{BaseURL: srv.URL, APIKey: "k"}}, canvas.New(nil, nil))

	p, err := s.Grades(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Contains(t, p.Error, "status=502")
	assert.NotNil(t, p.Grades)
}

func TestGradesAndProfile(t *testing.T) {
	s := serviceFor(t)

	g, err := s.Grades(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, g.Grades, 2)
	assert.Equal(t, "B+", *g.Grades[0].Grade.Label)
	assert.Nil(t, g.Grades[1].Grade)

	p, err := s.Profile(context.Background(), "owner-1")
	require.NoError(t, err)
	require.NotNil(t, p.Profile)
	assert.Equal(t, "Grace Student", p.Profile.Name)
	assert.Equal(t, "g@example.edu", p.Profile.Email)
}

func TestCourseViews(t *testing.T) {
	s := serviceFor(t)
	ctx := context.Background()

	d, err := s.CourseDetail(ctx, "owner-1", 1)
	require.NoError(t, err)
	require.NotNil(t, d.Course)
	assert.Equal(t, "<p>Read</p>", d.Course.SyllabusBody)
	assert.Len(t, d.Assignments, 4)
	require.Len(t, d.Teachers, 1)
	assert.Equal(t, "Dr. Ada", d.Teachers[0].Name)

	u, err := s.Upcoming(ctx, "owner-1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, u.Days)
	require.Len(t, u.Assignments, 1)
	assert.Equal(t, "Soon", u.Assignments[0].Name)

	perf, err := s.Performance(ctx, "owner-1", 1)
	require.NoError(t, err)
	require.NotNil(t, perf.Performance)
	assert.Equal(t, 1, perf.Performance.GradedAssignments)
	assert.Equal(t, 18.0, *perf.Performance.AverageScore)
	assert.Equal(t, 91.0, *perf.Performance.CurrentGrade.Score)

	_, err = s.CourseDetail(ctx, "owner-1", 9)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestAssignmentsAndAnnouncements(t *testing.T) {
	s := serviceFor(t)

	a, err := s.Assignments(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, a.Assignments, 3)
	require.Len(t, a.Failures, 1)
	assert.Equal(t, int64(2), a.Failures[0].CourseID)

	n, err := s.Announcements(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, n.Announcements, 1)
	assert.Empty(t, n.Error)
}

func TestSlowCourseIsReportedAfterBranchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/courses/1" {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
			_, _ = w.Write([]byte(`{"id": 1, "name": "CS 101"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	s := New(credentials.StaticResolver{Credentials: canvas.Credentials{BaseURL: srv.URL, APIKey: "k"}}, canvas.New(nil, nil),
		aggregate.New(concurrency.ParallelOptions{BranchTimeout: 50 * time.Millisecond}, nil),
		view.NewBuilder(func() time.Time { return now }),
		canvas.FetchOptions{}, DefaultWindows(), nil)

	d, err := s.CourseDetail(context.Background(), "owner-1", 1)
	require.NoError(t, err)
	assert.Nil(t, d.Course)
	assert.Contains(t, d.Error, "canvas request failed")
	assert.NotNil(t, d.Assignments)

	perf, err := s.Performance(context.Background(), "owner-1", 1)
	require.NoError(t, err)
	assert.Nil(t, perf.Performance)
	assert.Contains(t, perf.Error, "canvas request failed")
}
