package mappers

import (
	"strings"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/domain"
)

// Courses maps a course list, skipping the id-only stubs Canvas returns for
// courses the user can no longer access.
func Courses(in []canvas.Course) []domain.Course {
	out := make([]domain.Course, 0, len(in))
	for _, c := range in {
		if c.AccessRestrictedByDate && strings.TrimSpace(c.Name) == "" {
			continue
		}
		out = append(out, Course(c))
	}
	return out
}

func Course(c canvas.Course) domain.Course {
	out := domain.Course{
		ID:            int64(c.ID),
		Name:          strings.TrimSpace(c.Name),
		Code:          strings.TrimSpace(c.CourseCode),
		WorkflowState: c.WorkflowState,
		StartAt:       c.StartAt.Ptr(),
		EndAt:         c.EndAt.Ptr(),
		Enrollments:   make([]domain.Enrollment, 0, len(c.Enrollments)),
		Teachers:      Teachers(c.Teachers),
		SyllabusBody:  c.SyllabusBody,
	}
	if c.Term != nil {
		out.Term = &domain.Term{
			ID:      int64(c.Term.ID),
			Name:    strings.TrimSpace(c.Term.Name),
			StartAt: c.Term.StartAt.Ptr(),
			EndAt:   c.Term.EndAt.Ptr(),
		}
	}
	for _, e := range c.Enrollments {
		out.Enrollments = append(out.Enrollments, Enrollment(e))
	}
	return out
}

// Enrollment prefers the computed_* fields of include[]=total_scores and
// falls back to the nested grades block of the enrollments endpoint.
func Enrollment(e canvas.Enrollment) domain.Enrollment {
	out := domain.Enrollment{
		Type:         e.Type,
		Role:         e.Role,
		State:        e.EnrollmentState,
		CurrentScore: e.ComputedCurrentScore,
		FinalScore:   e.ComputedFinalScore,
		CurrentGrade: e.ComputedCurrentGrade.Ptr(),
		FinalGrade:   e.ComputedFinalGrade.Ptr(),
	}
	if g := e.Grades; g != nil {
		if out.CurrentScore == nil {
			out.CurrentScore = g.CurrentScore
		}
		if out.FinalScore == nil {
			out.FinalScore = g.FinalScore
		}
		if out.CurrentGrade == nil {
			out.CurrentGrade = g.CurrentGrade.Ptr()
		}
		if out.FinalGrade == nil {
			out.FinalGrade = g.FinalGrade.Ptr()
		}
	}
	return out
}

func Teachers(in []canvas.Teacher) []domain.Teacher {
	out := make([]domain.Teacher, 0, len(in))
	for _, t := range in {
		out = append(out, domain.Teacher{
			ID:        int64(t.ID),
			Name:      firstNonEmpty(t.DisplayName, t.Name),
			Email:     t.Email,
			AvatarURL: firstNonEmpty(t.AvatarImageURL, t.AvatarURL),
			HTMLURL:   t.HTMLURL,
		})
	}
	return out
}

// Assignments maps a course's assignments. courseID fills in records that
// come without course_id.
func Assignments(in []canvas.Assignment, courseID int64) []domain.Assignment {
	out := make([]domain.Assignment, 0, len(in))
	for _, a := range in {
		out = append(out, Assignment(a, courseID))
	}
	return out
}

func Assignment(a canvas.Assignment, courseID int64) domain.Assignment {
	cid := int64(a.CourseID)
	if cid == 0 {
		cid = courseID
	}
	types := a.SubmissionTypes
	if types == nil {
		types = []string{}
	}
	return domain.Assignment{
		ID:              int64(a.ID),
		CourseID:        cid,
		Name:            strings.TrimSpace(a.Name),
		Description:     a.Description,
		DueAt:           a.DueAt.Ptr(),
		PointsPossible:  a.PointsPossible,
		SubmissionTypes: types,
		HTMLURL:         a.HTMLURL,
		Published:       a.Published,
		HasSubmissions:  a.HasSubmittedSubmissions,
		Submission:      Submission(a.Submission),
	}
}

func Submission(s *canvas.Submission) *domain.SubmissionInfo {
	if s == nil {
		return nil
	}
	return &domain.SubmissionInfo{
		Score:         s.Score,
		Grade:         s.Grade.Ptr(),
		SubmittedAt:   s.SubmittedAt.Ptr(),
		GradedAt:      s.GradedAt.Ptr(),
		Late:          s.Late,
		Missing:       s.Missing,
		WorkflowState: s.WorkflowState,
	}
}

// JoinSubmissions attaches submissions to assignments by assignment id.
// An assignment that already carries an embedded submission keeps it.
func JoinSubmissions(assignments []domain.Assignment, subs []canvas.Submission) []domain.Assignment {
	if len(subs) == 0 {
		return assignments
	}
	byAssignment := make(map[int64]canvas.Submission, len(subs))
	for _, s := range subs {
		if s.AssignmentID == 0 {
			continue
		}
		byAssignment[int64(s.AssignmentID)] = s
	}
	for i := range assignments {
		if assignments[i].Submission != nil {
			continue
		}
		if s, ok := byAssignment[assignments[i].ID]; ok {
			assignments[i].Submission = Submission(&s)
		}
	}
	return assignments
}

func Announcements(in []canvas.Announcement) []domain.Announcement {
	out := make([]domain.Announcement, 0, len(in))
	for _, a := range in {
		author := ""
		if a.Author != nil {
			author = a.Author.DisplayName
		}
		out = append(out, domain.Announcement{
			ID:          int64(a.ID),
			Title:       strings.TrimSpace(a.Title),
			Message:     a.Message,
			PostedAt:    a.PostedAt.Ptr(),
			ContextCode: a.ContextCode,
			HTMLURL:     a.HTMLURL,
			Author:      author,
		})
	}
	return out
}

func Profile(p canvas.Profile) domain.Profile {
	return domain.Profile{
		ID:        int64(p.ID),
		Name:      p.Name,
		ShortName: p.ShortName,
		Email:     p.PrimaryEmail,
		LoginID:   p.LoginID,
		AvatarURL: p.AvatarURL,
		TimeZone:  p.TimeZone,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
