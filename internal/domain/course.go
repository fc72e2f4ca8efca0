package domain

import "time"

// CourseStatus is derived from dates, Canvas does not store it.
type CourseStatus string

const (
	StatusCurrent CourseStatus = "current"
	StatusPast    CourseStatus = "past"
)

// ParseCourseStatus accepts "current" and "past" (any case). ok is false otherwise.
func ParseCourseStatus(s string) (CourseStatus, bool) {
	switch CourseStatus(normalize(s)) {
	case StatusCurrent:
		return StatusCurrent, true
	case StatusPast:
		return StatusPast, true
	}
	return "", false
}

type Term struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

// Course is the canonical course inside this service. Instances are built
// fresh from Canvas on every request.
type Course struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Code          string       `json:"course_code"`
	WorkflowState string       `json:"workflow_state,omitempty"`
	StartAt       *time.Time   `json:"start_at"`
	EndAt         *time.Time   `json:"end_at"`
	Term          *Term        `json:"term,omitempty"`
	Enrollments   []Enrollment `json:"enrollments"`
	Teachers      []Teacher    `json:"teachers"`
	SyllabusBody  string       `json:"syllabus_body,omitempty"`
}

// EffectiveEnd is the course end date, falling back to the term end date.
func (c Course) EffectiveEnd() *time.Time {
	if c.EndAt != nil {
		return c.EndAt
	}
	if c.Term != nil {
		return c.Term.EndAt
	}
	return nil
}

// Status is current when there is no end date or it lies after now.
func (c Course) Status(now time.Time) CourseStatus {
	end := c.EffectiveEnd()
	if end == nil || end.After(now) {
		return StatusCurrent
	}
	return StatusPast
}

func (c Course) TermName() string {
	if c.Term == nil {
		return ""
	}
	return c.Term.Name
}

// Enrollment holds the caller's role and scores in a course.
type Enrollment struct {
	Type         string   `json:"type"`
	Role         string   `json:"role,omitempty"`
	State        string   `json:"enrollment_state,omitempty"`
	CurrentScore *float64 `json:"current_score"`
	FinalScore   *float64 `json:"final_score"`
	CurrentGrade *string  `json:"current_grade"`
	FinalGrade   *string  `json:"final_grade"`
}

func (e Enrollment) IsStudent() bool {
	t := normalize(e.Type)
	return t == "student" || t == "studentenrollment"
}

type Teacher struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

type Profile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	Email     string `json:"email,omitempty"`
	LoginID   string `json:"login_id,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TimeZone  string `json:"time_zone,omitempty"`
}
