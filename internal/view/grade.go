package view

import "canvas-sync/internal/domain"

// Grade is the effective grade of a course.
type Grade struct {
	Score  *float64 `json:"score"`
	Label  *string  `json:"grade"`
	Source string   `json:"source"` // current | final
}

// DeriveGrade picks the first enrollment that carries any grade, student
// enrollments first. Current values win over final ones. Nil when no
// enrollment has a grade.
func DeriveGrade(enrollments []domain.Enrollment) *Grade {
	for _, students := range []bool{true, false} {
		for _, e := range enrollments {
			if e.IsStudent() != students {
				continue
			}
			if g := gradeOf(e); g != nil {
				return g
			}
		}
	}
	return nil
}

func gradeOf(e domain.Enrollment) *Grade {
	if e.CurrentScore != nil || e.CurrentGrade != nil {
		return &Grade{Score: e.CurrentScore, Label: e.CurrentGrade, Source: "current"}
	}
	if e.FinalScore != nil || e.FinalGrade != nil {
		return &Grade{Score: e.FinalScore, Label: e.FinalGrade, Source: "final"}
	}
	return nil
}
