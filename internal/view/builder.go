package view

import (
	"strings"
	"time"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/domain"
	"canvas-sync/internal/logging"
)

// Builder assembles payloads. It never fails: upstream failures end up in
// error fields.
type Builder struct {
	now func() time.Time
}

// NewBuilder takes the clock used for windows and course status. nil means time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

func (b *Builder) Now() time.Time { return b.now() }

// DashboardInput is the raw material of the dashboard view.
type DashboardInput struct {
	Courses            []domain.Course
	Assignments        []aggregate.CourseResult[domain.Assignment]
	Announcements      []aggregate.CourseResult[domain.Announcement]
	AssignmentWindow   WindowSpec
	AnnouncementWindow WindowSpec
}

func (b *Builder) Dashboard(in DashboardInput, timer *Timer) DashboardPayload {
	now := b.now()

	assignments := markMissing(FilterAssignments(aggregate.MergeAssignments(in.Assignments), in.AssignmentWindow, now), now)
	announcements := FilterAnnouncements(aggregate.MergeAnnouncements(in.Announcements), in.AnnouncementWindow, now)

	counts := map[int64]int{}
	for _, a := range assignments {
		counts[a.CourseID]++
	}
	courseErrors := map[int64][]string{}
	for _, f := range aggregate.Failures(in.Assignments) {
		courseErrors[f.CourseID] = append(courseErrors[f.CourseID], "assignments: "+logging.SanitizeString(f.Error))
	}
	for _, f := range aggregate.Failures(in.Announcements) {
		courseErrors[f.CourseID] = append(courseErrors[f.CourseID], "announcements: "+logging.SanitizeString(f.Error))
	}

	cards := make([]CourseCard, 0, len(in.Courses))
	for _, c := range in.Courses {
		card := b.card(c, now)
		card.AssignmentCount = counts[c.ID]
		card.Error = strings.Join(courseErrors[c.ID], "; ")
		cards = append(cards, card)
	}

	return DashboardPayload{
		Courses:       cards,
		Assignments:   assignments,
		Announcements: announcements,
		Timing:        timer.Timing(),
		Error:         partialMessage(aggregate.Partial(in.Assignments), aggregate.Partial(in.Announcements)),
	}
}

func (b *Builder) Assignments(results []aggregate.CourseResult[domain.Assignment], w WindowSpec, timer *Timer) AssignmentsPayload {
	now := b.now()
	return AssignmentsPayload{
		Assignments: markMissing(FilterAssignments(aggregate.MergeAssignments(results), w, now), now),
		Failures:    sanitized(aggregate.Failures(results)),
		Timing:      timer.Timing(),
		Error:       partialMessage(aggregate.Partial(results)),
	}
}

func (b *Builder) Announcements(results []aggregate.CourseResult[domain.Announcement], w WindowSpec, timer *Timer) AnnouncementsPayload {
	return AnnouncementsPayload{
		Announcements: FilterAnnouncements(aggregate.MergeAnnouncements(results), w, b.now()),
		Failures:      sanitized(aggregate.Failures(results)),
		Timing:        timer.Timing(),
		Error:         partialMessage(aggregate.Partial(results)),
	}
}

func (b *Builder) Grades(courses []domain.Course, timer *Timer) GradesPayload {
	now := b.now()
	out := make([]CourseGrade, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseGrade{
			CourseID:   c.ID,
			CourseName: c.Name,
			CourseCode: c.Code,
			Status:     c.Status(now),
			Grade:      DeriveGrade(c.Enrollments),
		})
	}
	return GradesPayload{Grades: out, Timing: timer.Timing()}
}

// Upcoming lists the course's assignments due within the next days.
func (b *Builder) Upcoming(course domain.Course, assignments []domain.Assignment, days int, timer *Timer) UpcomingPayload {
	now := b.now()
	merged := single(course, assignments)
	return UpcomingPayload{
		CourseID:    course.ID,
		Days:        days,
		Assignments: markMissing(Upcoming(merged, days, now), now),
		Timing:      timer.Timing(),
	}
}

// CourseDetail shows one course with every assignment. assignmentsErr is the
// failure of the assignment fetch, if any; the course is still shown.
func (b *Builder) CourseDetail(course domain.Course, assignments []domain.Assignment, assignmentsErr error, timer *Timer) CourseDetailPayload {
	now := b.now()
	card := b.card(course, now)
	merged := markMissing(single(course, assignments), now)
	card.AssignmentCount = len(merged)

	p := CourseDetailPayload{
		Course:      &CourseDetail{CourseCard: card, SyllabusBody: course.SyllabusBody},
		Assignments: merged,
		Teachers:    nonNilTeachers(course.Teachers),
		Timing:      timer.Timing(),
	}
	if assignmentsErr != nil {
		p.Error = "assignments: " + logging.SanitizeError(assignmentsErr)
		p.Course.Error = p.Error
	}
	return p
}

func (b *Builder) Performance(course domain.Course, assignments []domain.Assignment, timer *Timer) PerformancePayload {
	perf := Analyze(assignments, course.Enrollments, b.now())
	return PerformancePayload{
		CourseID:    course.ID,
		CourseName:  course.Name,
		Performance: &perf,
		Timing:      timer.Timing(),
	}
}

func (b *Builder) Profile(p domain.Profile, timer *Timer) ProfilePayload {
	return ProfilePayload{Profile: &p, Timing: timer.Timing()}
}

func (b *Builder) card(c domain.Course, now time.Time) CourseCard {
	return CourseCard{
		ID:       c.ID,
		Name:     c.Name,
		Code:     c.Code,
		Term:     c.TermName(),
		Status:   c.Status(now),
		StartAt:  c.StartAt,
		EndAt:    c.EffectiveEnd(),
		Grade:    DeriveGrade(c.Enrollments),
		Teachers: nonNilTeachers(c.Teachers),
	}
}

// single runs the normal merge over one course.
func single(course domain.Course, assignments []domain.Assignment) []aggregate.CourseAssignment {
	if assignments == nil {
		assignments = []domain.Assignment{}
	}
	return aggregate.MergeAssignments([]aggregate.CourseResult[domain.Assignment]{{
		CourseID:   course.ID,
		CourseName: course.Name,
		CourseCode: course.Code,
		Items:      assignments,
	}})
}

// markMissing sets the derived missing flag on each submission. Submissions
// are copied; the merged list may share them with other views.
func markMissing(list []aggregate.CourseAssignment, now time.Time) []aggregate.CourseAssignment {
	for i := range list {
		a := &list[i]
		if !a.Missing(now) {
			continue
		}
		sub := domain.SubmissionInfo{}
		if a.Submission != nil {
			sub = *a.Submission
		}
		sub.Missing = true
		a.Submission = &sub
	}
	return list
}

func partialMessage(errs ...*aggregate.PartialAggregateError) string {
	var parts []string
	for _, e := range errs {
		if e != nil {
			parts = append(parts, e.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func sanitized(in []aggregate.CourseFailure) []aggregate.CourseFailure {
	for i := range in {
		in[i].Error = logging.SanitizeString(in[i].Error)
	}
	return in
}

func nonNilTeachers(t []domain.Teacher) []domain.Teacher {
	if t == nil {
		return []domain.Teacher{}
	}
	return t
}
