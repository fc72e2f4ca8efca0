// Package dashboard wires credential resolution, Canvas fetches, aggregation
// and view building into the payloads served by the API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/domain"
	"canvas-sync/internal/logging"
	"canvas-sync/internal/mappers"
	"canvas-sync/internal/view"
)

// ErrCourseNotFound is returned when Canvas does not know the course.
var ErrCourseNotFound = errors.New("course not found")

const genericFailure = "unexpected error while building the view"

// Windows are the per-view inclusion windows.
type Windows struct {
	Dashboard         view.WindowSpec
	Assignments       view.WindowSpec
	AnnouncementsPast time.Duration
	UpcomingDays      int
}

func DefaultWindows() Windows {
	return Windows{
		Dashboard:         view.Window(7*24*time.Hour, 30*24*time.Hour),
		Assignments:       view.Window(30*24*time.Hour, 60*24*time.Hour),
		AnnouncementsPast: 14 * 24 * time.Hour,
		UpcomingDays:      7,
	}
}

type Service struct {
	resolver   credentials.Resolver
	client     *canvas.Client
	aggregator *aggregate.Aggregator
	builder    *view.Builder
	fetch      canvas.FetchOptions
	windows    Windows
	logger     *zap.Logger
}

func New(resolver credentials.Resolver, client *canvas.Client, aggregator *aggregate.Aggregator, builder *view.Builder, fetch canvas.FetchOptions, windows Windows, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver:   resolver,
		client:     client,
		aggregator: aggregator,
		builder:    builder,
		fetch:      fetch,
		windows:    windows,
		logger:     logger.Named("dashboard"),
	}
}

func (s *Service) Windows() Windows { return s.windows }

// request carries what every view needs after the credentials stage.
type request struct {
	creds canvas.Credentials
	timer *view.Timer
	log   *zap.Logger
}

// begin resolves credentials. Errors are credential errors and go back to the
// caller untouched.
func (s *Service) begin(ctx context.Context, owner string) (request, error) {
	timer := view.NewTimer(s.builder.Now)
	stop := timer.Start(view.StageCredentials)
	creds, err := s.resolver.Resolve(ctx, owner)
	stop()
	return request{creds: creds, timer: timer, log: logging.With(ctx, s.logger).With(zap.String("owner", owner))}, err
}

func (s *Service) courses(ctx context.Context, r request) ([]domain.Course, error) {
	defer r.timer.Start(view.StageCourses)()
	raw, err := s.client.ListCourses(ctx, r.creds, s.fetch)
	if err != nil {
		return nil, err
	}
	return mappers.Courses(raw), nil
}

func (s *Service) announcementsSince() time.Time {
	return s.builder.Now().Add(-s.windows.AnnouncementsPast)
}

// Dashboard builds the home view: course cards, windowed assignments and
// recent announcements.
func (s *Service) Dashboard(ctx context.Context, owner string) (p view.DashboardPayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedDashboard(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "dashboard", func(msg string) { p = view.FailedDashboard(msg, r.timer.Timing()) })

	courses, err := s.courses(ctx, r)
	if err != nil {
		r.log.Warn("course list failed", zap.Error(err))
		return view.FailedDashboard(upstreamMessage(err), r.timer.Timing()), nil
	}

	assignmentsOut, announcementsOut := concurrency.Both(ctx, concurrency.ParallelOptions{},
		func(ctx context.Context) ([]aggregate.CourseResult[domain.Assignment], error) {
			defer r.timer.Start(view.StageAssignments)()
			return aggregate.Aggregate(ctx, s.aggregator, courses, aggregate.AssignmentsQuery(s.client, s.fetch, s.logger), r.creds), nil
		},
		func(ctx context.Context) ([]aggregate.CourseResult[domain.Announcement], error) {
			defer r.timer.Start(view.StageAnnouncements)()
			return aggregate.Aggregate(ctx, s.aggregator, courses, aggregate.AnnouncementsQuery(s.client, s.announcementsSince(), time.Time{}, s.fetch), r.creds), nil
		},
	)
	assignments := assignmentsOut.Value
	if assignmentsOut.Err != nil {
		assignments = aggregate.FailedResults[domain.Assignment](courses, assignmentsOut.Err)
	}
	announcements := announcementsOut.Value
	if announcementsOut.Err != nil {
		announcements = aggregate.FailedResults[domain.Announcement](courses, announcementsOut.Err)
	}

	stop := r.timer.Start(view.StageProcessing)
	p = s.builder.Dashboard(view.DashboardInput{
		Courses:            courses,
		Assignments:        assignments,
		Announcements:      announcements,
		AssignmentWindow:   s.windows.Dashboard,
		AnnouncementWindow: view.Window(s.windows.AnnouncementsPast, 0),
	}, nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

// Assignments lists assignments of every course inside the assignments window.
func (s *Service) Assignments(ctx context.Context, owner string) (p view.AssignmentsPayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedAssignments(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "assignments", func(msg string) { p = view.FailedAssignments(msg, r.timer.Timing()) })

	courses, err := s.courses(ctx, r)
	if err != nil {
		r.log.Warn("course list failed", zap.Error(err))
		return view.FailedAssignments(upstreamMessage(err), r.timer.Timing()), nil
	}

	stop := r.timer.Start(view.StageAssignments)
	results := aggregate.Aggregate(ctx, s.aggregator, courses, aggregate.AssignmentsQuery(s.client, s.fetch, s.logger), r.creds)
	stop()

	stop = r.timer.Start(view.StageProcessing)
	p = s.builder.Assignments(results, s.windows.Assignments, nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

// Announcements lists announcements of every course posted in the last window.
func (s *Service) Announcements(ctx context.Context, owner string) (p view.AnnouncementsPayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedAnnouncements(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "announcements", func(msg string) { p = view.FailedAnnouncements(msg, r.timer.Timing()) })

	courses, err := s.courses(ctx, r)
	if err != nil {
		r.log.Warn("course list failed", zap.Error(err))
		return view.FailedAnnouncements(upstreamMessage(err), r.timer.Timing()), nil
	}

	stop := r.timer.Start(view.StageAnnouncements)
	results := aggregate.Aggregate(ctx, s.aggregator, courses, aggregate.AnnouncementsQuery(s.client, s.announcementsSince(), time.Time{}, s.fetch), r.creds)
	stop()

	stop = r.timer.Start(view.StageProcessing)
	p = s.builder.Announcements(results, view.Window(s.windows.AnnouncementsPast, 0), nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

// Grades derives one grade per course from the course list enrollments.
func (s *Service) Grades(ctx context.Context, owner string) (p view.GradesPayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedGrades(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "grades", func(msg string) { p = view.FailedGrades(msg, r.timer.Timing()) })

	courses, err := s.courses(ctx, r)
	if err != nil {
		r.log.Warn("course list failed", zap.Error(err))
		return view.FailedGrades(upstreamMessage(err), r.timer.Timing()), nil
	}

	stop := r.timer.Start(view.StageProcessing)
	p = s.builder.Grades(courses, nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

func (s *Service) Profile(ctx context.Context, owner string) (p view.ProfilePayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedProfile(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "profile", func(msg string) { p = view.FailedProfile(msg, r.timer.Timing()) })

	stop := r.timer.Start("profile")
	raw, err := s.client.GetProfile(ctx, r.creds)
	stop()
	if err != nil {
		r.log.Warn("profile failed", zap.Error(err))
		return view.FailedProfile(upstreamMessage(err), r.timer.Timing()), nil
	}
	p = s.builder.Profile(mappers.Profile(raw), nil)
	p.Timing = r.timer.Timing()
	return p, nil
}

// courseBundle is one course with its assignments (submissions joined).
type courseBundle struct {
	course         domain.Course
	assignments    []domain.Assignment
	assignmentsErr error
}

// course fetches the course and its assignments at the same time. A missing
// course is ErrCourseNotFound; any other course failure is returned as is.
func (s *Service) course(ctx context.Context, r request, courseID int64) (courseBundle, error) {
	courseOut, assignmentsOut := concurrency.Both(ctx, s.aggregator.Options(),
		func(ctx context.Context) (canvas.Course, error) {
			defer r.timer.Start(view.StageCourses)()
			return s.client.GetCourse(ctx, r.creds, courseID)
		},
		func(ctx context.Context) ([]domain.Assignment, error) {
			defer r.timer.Start(view.StageAssignments)()
			q := aggregate.AssignmentsQuery(s.client, s.fetch, s.logger)
			return q(ctx, r.creds, domain.Course{ID: courseID})
		},
	)
	if err := courseOut.Err; err != nil {
		var ferr *canvas.FetchError
		if errors.As(err, &ferr) && ferr.Status == http.StatusNotFound {
			return courseBundle{}, fmt.Errorf("%w: %d", ErrCourseNotFound, courseID)
		}
		return courseBundle{}, err
	}
	return courseBundle{
		course:         mappers.Course(courseOut.Value),
		assignments:    assignmentsOut.Value,
		assignmentsErr: assignmentsOut.Err,
	}, nil
}

// CourseDetail shows one course with all its assignments. A failed
// assignment fetch is reported in the payload; the course is still shown.
func (s *Service) CourseDetail(ctx context.Context, owner string, courseID int64) (p view.CourseDetailPayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedCourseDetail(logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "course detail", func(msg string) { p = view.FailedCourseDetail(msg, r.timer.Timing()) })

	b, err := s.course(ctx, r, courseID)
	if err != nil {
		return view.FailedCourseDetail(upstreamMessage(err), r.timer.Timing()), notFound(err)
	}

	stop := r.timer.Start(view.StageProcessing)
	p = s.builder.CourseDetail(b.course, b.assignments, b.assignmentsErr, nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

// Upcoming lists a course's assignments due in the next days (default from
// Windows when days <= 0).
func (s *Service) Upcoming(ctx context.Context, owner string, courseID int64, days int) (p view.UpcomingPayload, err error) {
	if days <= 0 {
		days = s.windows.UpcomingDays
	}
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedUpcoming(courseID, days, logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "upcoming", func(msg string) { p = view.FailedUpcoming(courseID, days, msg, r.timer.Timing()) })

	b, err := s.course(ctx, r, courseID)
	if err == nil && b.assignmentsErr != nil {
		err = b.assignmentsErr
	}
	if err != nil {
		return view.FailedUpcoming(courseID, days, upstreamMessage(err), r.timer.Timing()), notFound(err)
	}

	stop := r.timer.Start(view.StageProcessing)
	p = s.builder.Upcoming(b.course, b.assignments, days, nil)
	stop()
	p.Timing = r.timer.Timing()
	return p, nil
}

// Performance analyses the caller's results in one course.
func (s *Service) Performance(ctx context.Context, owner string, courseID int64) (p view.PerformancePayload, err error) {
	r, err := s.begin(ctx, owner)
	if err != nil {
		return view.FailedPerformance(courseID, logging.SanitizeError(err), r.timer.Timing()), err
	}
	defer s.recoverInto(r, "performance", func(msg string) { p = view.FailedPerformance(courseID, msg, r.timer.Timing()) })

	b, err := s.course(ctx, r, courseID)
	if err != nil {
		return view.FailedPerformance(courseID, upstreamMessage(err), r.timer.Timing()), notFound(err)
	}

	stop := r.timer.Start(view.StageProcessing)
	p = s.builder.Performance(b.course, b.assignments, nil)
	stop()
	if b.assignmentsErr != nil {
		p.Error = "assignments: " + logging.SanitizeError(b.assignmentsErr)
	}
	p.Timing = r.timer.Timing()
	return p, nil
}

// recoverInto turns a panic into the generic failure payload of the view.
// It must be deferred directly.
func (s *Service) recoverInto(r request, viewName string, fail func(msg string)) {
	if v := recover(); v != nil {
		r.log.Error("view build panicked",
			zap.String("view", viewName),
			zap.Any("panic", v),
			zap.ByteString("stack", debug.Stack()))
		fail(genericFailure)
	}
}

func upstreamMessage(err error) string {
	return "canvas request failed: " + logging.SanitizeError(err)
}

// notFound keeps only ErrCourseNotFound as a returned error; other upstream
// failures are carried in the payload.
func notFound(err error) error {
	if errors.Is(err, ErrCourseNotFound) {
		return err
	}
	return nil
}
