package canvas

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ID puede venir como número (123) o como string ("123").
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*id = ID(n)
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// Timestamp acepta RFC3339, fecha sola, "" o null.
type Timestamp struct {
	time.Time
	Valid bool
}

var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		v, err := time.Parse(layout, s)
		if err == nil {
			*t = Timestamp{Time: v.UTC(), Valid: true}
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// Ptr returns nil for an absent timestamp.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Label is a grade label. Canvas sends "A-", 91.5 or null depending on grading type.
type Label string

func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(strings.TrimSpace(s))
		return nil
	}

	// numbers and booleans are kept verbatim
	*l = Label(string(b))
	return nil
}

func (l Label) Ptr() *string {
	if l == "" {
		return nil
	}
	s := string(l)
	return &s
}

/* -------- Wire types -------- */

type Term struct {
	ID      ID        `json:"id"`
	Name    string    `json:"name"`
	StartAt Timestamp `json:"start_at"`
	EndAt   Timestamp `json:"end_at"`
}

// Grades is the nested block returned by the enrollments endpoint.
type Grades struct {
	CurrentScore *float64 `json:"current_score"`
	FinalScore   *float64 `json:"final_score"`
	CurrentGrade Label    `json:"current_grade"`
	FinalGrade   Label    `json:"final_grade"`
}

type Enrollment struct {
	Type            string `json:"type"`
	Role            string `json:"role"`
	EnrollmentState string `json:"enrollment_state"`

	// include[]=total_scores
	ComputedCurrentScore *float64 `json:"computed_current_score"`
	ComputedFinalScore   *float64 `json:"computed_final_score"`
	ComputedCurrentGrade Label    `json:"computed_current_grade"`
	ComputedFinalGrade   Label    `json:"computed_final_grade"`

	Grades *Grades `json:"grades"`
}

type Teacher struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	AvatarURL      string `json:"avatar_url"`
	AvatarImageURL string `json:"avatar_image_url"`
	HTMLURL        string `json:"html_url"`
}

type Course struct {
	ID            ID           `json:"id"`
	Name          string       `json:"name"`
	CourseCode    string       `json:"course_code"`
	WorkflowState string       `json:"workflow_state"`
	StartAt       Timestamp    `json:"start_at"`
	EndAt         Timestamp    `json:"end_at"`
	Term          *Term        `json:"term"`
	Enrollments   []Enrollment `json:"enrollments"`
	Teachers      []Teacher    `json:"teachers"`
	SyllabusBody  string       `json:"syllabus_body"`

	// Courses the user can no longer open come back as stubs with only id and this flag.
	AccessRestrictedByDate bool `json:"access_restricted_by_date"`
}

type Submission struct {
	ID            ID        `json:"id"`
	AssignmentID  ID        `json:"assignment_id"`
	UserID        ID        `json:"user_id"`
	Score         *float64  `json:"score"`
	Grade         Label     `json:"grade"`
	SubmittedAt   Timestamp `json:"submitted_at"`
	GradedAt      Timestamp `json:"graded_at"`
	Late          bool      `json:"late"`
	Missing       bool      `json:"missing"`
	WorkflowState string    `json:"workflow_state"`
}

type Assignment struct {
	ID                      ID          `json:"id"`
	CourseID                ID          `json:"course_id"`
	Name                    string      `json:"name"`
	Description             string      `json:"description"`
	DueAt                   Timestamp   `json:"due_at"`
	PointsPossible          *float64    `json:"points_possible"`
	SubmissionTypes         []string    `json:"submission_types"`
	HTMLURL                 string      `json:"html_url"`
	Published               bool        `json:"published"`
	HasSubmittedSubmissions bool        `json:"has_submitted_submissions"`
	Submission              *Submission `json:"submission"`
}

type Announcement struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	PostedAt    Timestamp `json:"posted_at"`
	ContextCode string    `json:"context_code"`
	HTMLURL     string    `json:"html_url"`
	Author      *struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type Profile struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	SortableName string `json:"sortable_name"`
	PrimaryEmail string `json:"primary_email"`
	LoginID      string `json:"login_id"`
	AvatarURL    string `json:"avatar_url"`
	TimeZone     string `json:"time_zone"`
}
