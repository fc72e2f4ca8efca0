// Package api exposes the dashboard views, snapshot reads and sync runs over
// HTTP. Authentication happens upstream; the owner arrives in a header.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	csync "canvas-sync/internal/sync"
	"canvas-sync/internal/view"
)

const DefaultOwnerHeader = "X-User-Id"

// Views is implemented by dashboard.Service.
type Views interface {
	Dashboard(ctx context.Context, owner string) (view.DashboardPayload, error)
	Assignments(ctx context.Context, owner string) (view.AssignmentsPayload, error)
	Announcements(ctx context.Context, owner string) (view.AnnouncementsPayload, error)
	Grades(ctx context.Context, owner string) (view.GradesPayload, error)
	Profile(ctx context.Context, owner string) (view.ProfilePayload, error)
	CourseDetail(ctx context.Context, owner string, courseID int64) (view.CourseDetailPayload, error)
	Upcoming(ctx context.Context, owner string, courseID int64, days int) (view.UpcomingPayload, error)
	Performance(ctx context.Context, owner string, courseID int64) (view.PerformancePayload, error)
}

type Runner interface {
	Run(ctx context.Context, owner string, opts csync.RunOptions) (csync.RunReport, error)
}

type Snapshots interface {
	SnapshotCourses(ctx context.Context, owner, status string) ([]csync.CourseSnapshot, error)
	SnapshotAssignments(ctx context.Context, owner string, courseID int64) ([]csync.AssignmentSnapshot, error)
}

type CredentialSaver interface {
	Save(ctx context.Context, owner string, creds canvas.Credentials) error
}

type Deps struct {
	Views       Views
	Runner      Runner
	Snapshots   Snapshots
	Credentials CredentialSaver
	OwnerHeader string
	Logger      *zap.Logger
}

type Handler struct {
	views       Views
	runner      Runner
	snapshots   Snapshots
	credentials CredentialSaver
	logger      *zap.Logger
}

// NewRouter builds the chi router. Routes whose dependency is nil are not
// mounted.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.OwnerHeader == "" {
		d.OwnerHeader = DefaultOwnerHeader
	}
	h := &Handler{
		views:       d.Views,
		runner:      d.Runner,
		snapshots:   d.Snapshots,
		credentials: d.Credentials,
		logger:      d.Logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(logging(d.Logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, 1<<20)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(ownerMiddleware(d.OwnerHeader))

		if h.views != nil {
			r.Get("/dashboard", h.dashboard)
			r.Get("/assignments", h.assignments)
			r.Get("/announcements", h.announcements)
			r.Get("/grades", h.grades)
			r.Get("/profile", h.profile)
			r.Route("/courses/{courseID}", func(r chi.Router) {
				r.Get("/", h.courseDetail)
				r.Get("/upcoming", h.upcoming)
				r.Get("/performance", h.performance)
			})
		}
		if h.snapshots != nil {
			r.Get("/snapshot/courses", h.snapshotCourses)
			r.Get("/snapshot/courses/{courseID}/assignments", h.snapshotAssignments)
		}
		if h.runner != nil {
			r.Post("/sync", h.sync)
		}
		if h.credentials != nil {
			r.Put("/credentials", h.saveCredentials)
		}
	})
	return r
}
