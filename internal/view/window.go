// Package view shapes aggregated Canvas data into the payloads served to the
// dashboard: windowed lists, derived grades and a timing breakdown.
package view

import (
	"time"

	"canvas-sync/internal/aggregate"
)

// WindowSpec is an inclusion window relative to now. Assignments without a
// due date are always inside it.
type WindowSpec struct {
	Past      time.Duration
	Future    time.Duration
	Unbounded bool
}

// Unbounded is used by detailed views that show everything.
var Unbounded = WindowSpec{Unbounded: true}

func Window(past, future time.Duration) WindowSpec {
	return WindowSpec{Past: past, Future: future}
}

// Contains reports whether t falls in [now-Past, now+Future].
func (w WindowSpec) Contains(t *time.Time, now time.Time) bool {
	if w.Unbounded || t == nil {
		return true
	}
	return !t.Before(now.Add(-w.Past)) && !t.After(now.Add(w.Future))
}

// FilterAssignments keeps the order of list.
func FilterAssignments(list []aggregate.CourseAssignment, w WindowSpec, now time.Time) []aggregate.CourseAssignment {
	out := make([]aggregate.CourseAssignment, 0, len(list))
	for _, a := range list {
		if w.Contains(a.DueAt, now) {
			out = append(out, a)
		}
	}
	return out
}

// FilterAnnouncements drops announcements posted before now-Past. Undated
// announcements are kept.
func FilterAnnouncements(list []aggregate.CourseAnnouncement, w WindowSpec, now time.Time) []aggregate.CourseAnnouncement {
	out := make([]aggregate.CourseAnnouncement, 0, len(list))
	for _, a := range list {
		if w.Unbounded || a.PostedAt == nil || !a.PostedAt.Before(now.Add(-w.Past)) {
			out = append(out, a)
		}
	}
	return out
}

// Upcoming keeps assignments due in [now, now+days]. Undated ones are left out
// since they cannot be upcoming.
func Upcoming(list []aggregate.CourseAssignment, days int, now time.Time) []aggregate.CourseAssignment {
	limit := now.AddDate(0, 0, days)
	out := []aggregate.CourseAssignment{}
	for _, a := range list {
		if a.DueAt != nil && !a.DueAt.Before(now) && !a.DueAt.After(limit) {
			out = append(out, a)
		}
	}
	return out
}
