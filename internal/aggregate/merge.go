package aggregate

import (
	"sort"

	"canvas-sync/internal/domain"
)

// CourseAssignment is an assignment annotated with its course.
type CourseAssignment struct {
	domain.Assignment
	CourseName string `json:"course_name"`
	CourseCode string `json:"course_code"`
}

// CourseAnnouncement is an announcement annotated with its course.
type CourseAnnouncement struct {
	domain.Announcement
	CourseID   int64  `json:"course_id"`
	CourseName string `json:"course_name"`
	CourseCode string `json:"course_code"`
}

// MergeAssignments flattens the branches, annotates every record and orders
// the list by due date ascending with undated assignments last.
func MergeAssignments(results []CourseResult[domain.Assignment]) []CourseAssignment {
	out := []CourseAssignment{}
	for _, r := range results {
		for _, a := range r.Items {
			a.CourseID = r.CourseID
			out = append(out, CourseAssignment{Assignment: a, CourseName: r.CourseName, CourseCode: r.CourseCode})
		}
	}
	SortAssignments(out)
	return out
}

// MergeAnnouncements flattens and annotates announcements, most recent first.
// Undated announcements are kept and placed after the dated ones.
func MergeAnnouncements(results []CourseResult[domain.Announcement]) []CourseAnnouncement {
	out := []CourseAnnouncement{}
	for _, r := range results {
		for _, a := range r.Items {
			out = append(out, CourseAnnouncement{
				Announcement: a,
				CourseID:     r.CourseID,
				CourseName:   r.CourseName,
				CourseCode:   r.CourseCode,
			})
		}
	}
	SortAnnouncements(out)
	return out
}

// SortAssignments orders by due date ascending, undated last, ties by id.
func SortAssignments(list []CourseAssignment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].DueAt, list[j].DueAt
		switch {
		case a == nil && b == nil:
			return list[i].ID < list[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return list[i].ID < list[j].ID
	})
}

// SortAnnouncements orders by posted date descending, undated last.
func SortAnnouncements(list []CourseAnnouncement) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].PostedAt, list[j].PostedAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}
