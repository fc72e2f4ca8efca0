package canvas

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

/* -------- API -------- */

// ListCourses returns the user's active courses with term, teachers and total scores.
func (c *Client) ListCourses(ctx context.Context, creds Credentials, opts FetchOptions) ([]Course, error) {
	q := url.Values{}
	q.Set("enrollment_state", "active")
	q["include[]"] = []string{"term", "teachers", "total_scores"}
	return Fetch[Course](ctx, c, creds, "/api/v1/courses", q, opts)
}

// GetCourse returns one course with term, teachers, syllabus and total scores.
func (c *Client) GetCourse(ctx context.Context, creds Credentials, courseID int64) (Course, error) {
	q := url.Values{}
	q["include[]"] = []string{"term", "teachers", "syllabus_body", "total_scores"}

	var out Course
	err := c.getOne(ctx, creds, fmt.Sprintf("/api/v1/courses/%d", courseID), q, &out)
	return out, err
}

// ListAssignments returns a course's assignments with the caller's submission embedded.
func (c *Client) ListAssignments(ctx context.Context, creds Credentials, courseID int64, opts FetchOptions) ([]Assignment, error) {
	q := url.Values{}
	q["include[]"] = []string{"submission"}
	q.Set("order_by", "due_at")
	return Fetch[Assignment](ctx, c, creds, fmt.Sprintf("/api/v1/courses/%d/assignments", courseID), q, opts)
}

// ListSubmissions returns the caller's own submissions for a course. Canvas
// answers 401/403 for some enrollments, so this endpoint is always silent.
func (c *Client) ListSubmissions(ctx context.Context, creds Credentials, courseID int64, opts FetchOptions) ([]Submission, error) {
	q := url.Values{}
	q["student_ids[]"] = []string{"self"}
	opts.SilentErrors = true
	return Fetch[Submission](ctx, c, creds, fmt.Sprintf("/api/v1/courses/%d/students/submissions", courseID), q, opts)
}

// ListAnnouncements returns announcements of the given courses posted in [since, until].
// A zero since or until leaves that side open.
func (c *Client) ListAnnouncements(ctx context.Context, creds Credentials, courseIDs []int64, since, until time.Time, opts FetchOptions) ([]Announcement, error) {
	if len(courseIDs) == 0 {
		return []Announcement{}, nil
	}
	q := url.Values{}
	for _, id := range courseIDs {
		q.Add("context_codes[]", ContextCode(id))
	}
	if !since.IsZero() {
		q.Set("start_date", since.UTC().Format(time.RFC3339))
	}
	if !until.IsZero() {
		q.Set("end_date", until.UTC().Format(time.RFC3339))
	}
	return Fetch[Announcement](ctx, c, creds, "/api/v1/announcements", q, opts)
}

// ListTeachers returns the teacher enrollments of a course.
func (c *Client) ListTeachers(ctx context.Context, creds Credentials, courseID int64, opts FetchOptions) ([]Teacher, error) {
	q := url.Values{}
	q["enrollment_type[]"] = []string{"teacher"}
	q["include[]"] = []string{"avatar_url", "email"}
	return Fetch[Teacher](ctx, c, creds, fmt.Sprintf("/api/v1/courses/%d/users", courseID), q, opts)
}

// GetProfile returns the profile of the credential owner.
func (c *Client) GetProfile(ctx context.Context, creds Credentials) (Profile, error) {
	var out Profile
	err := c.getOne(ctx, creds, "/api/v1/users/self/profile", nil, &out)
	return out, err
}

// ContextCode is the announcement context identifier of a course.
func ContextCode(courseID int64) string {
	return fmt.Sprintf("course_%d", courseID)
}
