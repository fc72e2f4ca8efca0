package domain

import (
	"strconv"
	"strings"
	"time"
)

// Assignment belongs to exactly one course.
type Assignment struct {
	ID              int64           `json:"id"`
	CourseID        int64           `json:"course_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DueAt           *time.Time      `json:"due_at"`
	PointsPossible  *float64        `json:"points_possible"`
	SubmissionTypes []string        `json:"submission_types"`
	HTMLURL         string          `json:"html_url,omitempty"`
	Published       bool            `json:"published"`
	HasSubmissions  bool            `json:"has_submissions"`
	Submission      *SubmissionInfo `json:"submission"`
}

// SubmissionInfo is the caller's own submission for an assignment.
type SubmissionInfo struct {
	Score         *float64   `json:"score"`
	Grade         *string    `json:"grade"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`
	Late          bool       `json:"late"`
	Missing       bool       `json:"missing"`
	WorkflowState string     `json:"workflow_state,omitempty"`
}

// IsMissing honours an explicit flag; otherwise a submission is missing when
// nothing was submitted and the due date has passed.
func (s *SubmissionInfo) IsMissing(dueAt *time.Time, now time.Time) bool {
	if s != nil && s.Missing {
		return true
	}
	if s != nil && s.SubmittedAt != nil {
		return false
	}
	return dueAt != nil && dueAt.Before(now)
}

func (s *SubmissionInfo) IsGraded() bool {
	if s == nil {
		return false
	}
	if s.Score != nil {
		return true
	}
	return s.Grade != nil && strings.TrimSpace(*s.Grade) != ""
}

// Missing reports whether the caller still owes this assignment.
func (a Assignment) Missing(now time.Time) bool {
	return a.Submission.IsMissing(a.DueAt, now)
}

// Announcement is linked to a course by its context code ("course_123").
type Announcement struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	PostedAt    *time.Time `json:"posted_at"`
	ContextCode string     `json:"context_code"`
	HTMLURL     string     `json:"html_url,omitempty"`
	Author      string     `json:"author,omitempty"`
}

// CourseID parses the context code. ok is false for non-course contexts.
func (a Announcement) CourseID() (int64, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(a.ContextCode), "course_")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
