package view

import (
	"math"
	"sort"
	"time"

	"canvas-sync/internal/domain"
)

// Performance summarises the caller's results in one course.
type Performance struct {
	TotalAssignments  int      `json:"totalAssignments"`
	GradedAssignments int      `json:"gradedAssignments"`
	SubmittedCount    int      `json:"submittedCount"`
	MissingCount      int      `json:"missingCount"`
	LateCount         int      `json:"lateCount"`
	AverageScore      *float64 `json:"averageScore"`
	MedianScore       *float64 `json:"medianScore"`
	ScoreStdDev       *float64 `json:"scoreStdDev"`
	AveragePercent    *float64 `json:"averagePercent"`
	CurrentGrade      *Grade   `json:"currentGrade"`
}

// Analyze computes performance from assignments joined with submissions.
// Score statistics use raw scores of graded submissions; the standard
// deviation needs at least two of them.
func Analyze(assignments []domain.Assignment, enrollments []domain.Enrollment, now time.Time) Performance {
	p := Performance{TotalAssignments: len(assignments), CurrentGrade: DeriveGrade(enrollments)}

	var scores, percents []float64
	for _, a := range assignments {
		s := a.Submission
		if a.Missing(now) {
			p.MissingCount++
		}
		if s == nil {
			continue
		}
		if s.SubmittedAt != nil {
			p.SubmittedCount++
		}
		if s.Late {
			p.LateCount++
		}
		if !s.IsGraded() {
			continue
		}
		p.GradedAssignments++
		if s.Score != nil {
			scores = append(scores, *s.Score)
			if a.PointsPossible != nil && *a.PointsPossible > 0 {
				percents = append(percents, *s.Score / *a.PointsPossible * 100)
			}
		}
	}

	if len(scores) > 0 {
		p.AverageScore = ptr(mean(scores))
		p.MedianScore = ptr(median(scores))
	}
	if len(scores) > 1 {
		p.ScoreStdDev = ptr(stdDev(scores))
	}
	if len(percents) > 0 {
		p.AveragePercent = ptr(math.Round(mean(percents)*100) / 100)
	}
	return p
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func ptr(f float64) *float64 { return &f }
