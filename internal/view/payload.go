package view

import (
	"time"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/domain"
)

// Every payload is {<entities>, timing, error?}. Entity slices are never nil
// and error is only set when something was degraded.

type CourseCard struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Code            string              `json:"course_code"`
	Term            string              `json:"term,omitempty"`
	Status          domain.CourseStatus `json:"status"`
	StartAt         *time.Time          `json:"start_at"`
	EndAt           *time.Time          `json:"end_at"`
	Grade           *Grade              `json:"grade"`
	Teachers        []domain.Teacher    `json:"teachers"`
	AssignmentCount int                 `json:"assignmentCount"`
	Error           string              `json:"error,omitempty"`
}

type DashboardPayload struct {
	Courses       []CourseCard                   `json:"courses"`
	Assignments   []aggregate.CourseAssignment   `json:"assignments"`
	Announcements []aggregate.CourseAnnouncement `json:"announcements"`
	Timing        Timing                         `json:"timing"`
	Error         string                         `json:"error,omitempty"`
}

type AssignmentsPayload struct {
	Assignments []aggregate.CourseAssignment `json:"assignments"`
	Failures    []aggregate.CourseFailure    `json:"failures"`
	Timing      Timing                       `json:"timing"`
	Error       string                       `json:"error,omitempty"`
}

type AnnouncementsPayload struct {
	Announcements []aggregate.CourseAnnouncement `json:"announcements"`
	Failures      []aggregate.CourseFailure      `json:"failures"`
	Timing        Timing                         `json:"timing"`
	Error         string                         `json:"error,omitempty"`
}

type CourseGrade struct {
	CourseID   int64               `json:"course_id"`
	CourseName string              `json:"course_name"`
	CourseCode string              `json:"course_code"`
	Status     domain.CourseStatus `json:"status"`
	Grade      *Grade              `json:"grade"`
}

type GradesPayload struct {
	Grades []CourseGrade `json:"grades"`
	Timing Timing        `json:"timing"`
	Error  string        `json:"error,omitempty"`
}

type UpcomingPayload struct {
	CourseID    int64                        `json:"course_id"`
	Days        int                          `json:"days"`
	Assignments []aggregate.CourseAssignment `json:"assignments"`
	Timing      Timing                       `json:"timing"`
	Error       string                       `json:"error,omitempty"`
}

type CourseDetail struct {
	CourseCard
	SyllabusBody string `json:"syllabus_body,omitempty"`
}

type CourseDetailPayload struct {
	Course      *CourseDetail                `json:"course"`
	Assignments []aggregate.CourseAssignment `json:"assignments"`
	Teachers    []domain.Teacher             `json:"teachers"`
	Timing      Timing                       `json:"timing"`
	Error       string                       `json:"error,omitempty"`
}

type PerformancePayload struct {
	CourseID    int64        `json:"course_id"`
	CourseName  string       `json:"course_name"`
	Performance *Performance `json:"performance"`
	Timing      Timing       `json:"timing"`
	Error       string       `json:"error,omitempty"`
}

type ProfilePayload struct {
	Profile *domain.Profile `json:"profile"`
	Timing  Timing          `json:"timing"`
	Error   string          `json:"error,omitempty"`
}

// Failed payloads: structurally valid, empty, with the error set.

func FailedDashboard(msg string, t Timing) DashboardPayload {
	return DashboardPayload{
		Courses:       []CourseCard{},
		Assignments:   []aggregate.CourseAssignment{},
		Announcements: []aggregate.CourseAnnouncement{},
		Timing:        t,
		Error:         msg,
	}
}

func FailedAssignments(msg string, t Timing) AssignmentsPayload {
	return AssignmentsPayload{Assignments: []aggregate.CourseAssignment{}, Failures: []aggregate.CourseFailure{}, Timing: t, Error: msg}
}

func FailedAnnouncements(msg string, t Timing) AnnouncementsPayload {
	return AnnouncementsPayload{Announcements: []aggregate.CourseAnnouncement{}, Failures: []aggregate.CourseFailure{}, Timing: t, Error: msg}
}

func FailedGrades(msg string, t Timing) GradesPayload {
	return GradesPayload{Grades: []CourseGrade{}, Timing: t, Error: msg}
}

func FailedUpcoming(courseID int64, days int, msg string, t Timing) UpcomingPayload {
	return UpcomingPayload{CourseID: courseID, Days: days, Assignments: []aggregate.CourseAssignment{}, Timing: t, Error: msg}
}

func FailedCourseDetail(msg string, t Timing) CourseDetailPayload {
	return CourseDetailPayload{Assignments: []aggregate.CourseAssignment{}, Teachers: []domain.Teacher{}, Timing: t, Error: msg}
}

func FailedPerformance(courseID int64, msg string, t Timing) PerformancePayload {
	return PerformancePayload{CourseID: courseID, Timing: t, Error: msg}
}

func FailedProfile(msg string, t Timing) ProfilePayload {
	return ProfilePayload{Timing: t, Error: msg}
}
