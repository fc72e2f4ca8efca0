// Package aggregate fans a per-course query out over a course list and merges
// the results into flat, course-annotated lists.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/domain"
)

// Query fetches the child records of one course.
type Query[R any] func(ctx context.Context, creds canvas.Credentials, course domain.Course) ([]R, error)

// CourseResult is the settled branch of one course. Items is empty, never nil,
// when Err is set.
type CourseResult[R any] struct {
	CourseID   int64
	CourseName string
	CourseCode string
	Items      []R
	Err        error
	Elapsed    time.Duration
}

type Aggregator struct {
	opts   concurrency.ParallelOptions
	logger *zap.Logger
}

func New(opts concurrency.ParallelOptions, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{opts: opts, logger: logger.Named("aggregate")}
}

// Options returns the fan-out options, for callers that need to run
// sibling work under the same limits.
func (a *Aggregator) Options() concurrency.ParallelOptions {
	return a.opts
}

// Aggregate runs query once per course and waits for every branch. It never
// fails as a whole: a failing, panicking or timed out course only sets Err on
// its own result. Results come back in course order.
func Aggregate[R any](ctx context.Context, agg *Aggregator, courses []domain.Course, query Query[R], creds canvas.Credentials) []CourseResult[R] {
	outcomes := concurrency.ProcessParallel(ctx, courses, agg.opts, func(ctx context.Context, _ int, c domain.Course) ([]R, error) {
		return query(ctx, creds, c)
	})

	out := make([]CourseResult[R], len(courses))
	for i, o := range outcomes {
		c := courses[i]
		res := CourseResult[R]{
			CourseID:   c.ID,
			CourseName: c.Name,
			CourseCode: c.Code,
			Items:      o.Value,
			Err:        o.Err,
			Elapsed:    o.Elapsed,
		}
		if res.Err != nil || res.Items == nil {
			res.Items = []R{}
		}
		if res.Err != nil {
			agg.logger.Warn("course branch failed",
				zap.Int64("course_id", c.ID),
				zap.Duration("elapsed", o.Elapsed),
				zap.Error(res.Err))
		}
		out[i] = res
	}
	return out
}

// FailedResults marks every course as failed with err, for a fan-out that
// never settled.
func FailedResults[R any](courses []domain.Course, err error) []CourseResult[R] {
	out := make([]CourseResult[R], len(courses))
	for i, c := range courses {
		out[i] = CourseResult[R]{CourseID: c.ID, CourseName: c.Name, CourseCode: c.Code, Items: []R{}, Err: err}
	}
	return out
}

// CourseFailure is the diagnostic left by a failed branch.
type CourseFailure struct {
	CourseID   int64  `json:"courseId"`
	CourseName string `json:"courseName"`
	Error      string `json:"error"`
}

func Failures[R any](results []CourseResult[R]) []CourseFailure {
	out := []CourseFailure{}
	for _, r := range results {
		if r.Err != nil {
			out = append(out, CourseFailure{CourseID: r.CourseID, CourseName: r.CourseName, Error: r.Err.Error()})
		}
	}
	return out
}

// PartialAggregateError describes failed branches. It is carried as data in
// payloads and never returned as the failure of an aggregate call.
type PartialAggregateError struct {
	Total    int
	Failures []CourseFailure
}

func (e *PartialAggregateError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		name := f.CourseName
		if name == "" {
			name = fmt.Sprintf("course %d", f.CourseID)
		}
		names = append(names, name)
	}
	return fmt.Sprintf("%d of %d courses failed: %s", len(e.Failures), e.Total, strings.Join(names, ", "))
}

// Partial returns nil when every branch succeeded.
func Partial[R any](results []CourseResult[R]) *PartialAggregateError {
	failures := Failures(results)
	if len(failures) == 0 {
		return nil
	}
	return &PartialAggregateError{Total: len(results), Failures: failures}
}
