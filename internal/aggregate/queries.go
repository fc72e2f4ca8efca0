package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/domain"
	"canvas-sync/internal/mappers"
)

// AssignmentsQuery fetches a course's assignments and, at the same time, the
// caller's submissions in silent mode. Submissions are joined by assignment
// id; losing them only leaves assignments without submission info.
func AssignmentsQuery(client *canvas.Client, opts canvas.FetchOptions, logger *zap.Logger) Query[domain.Assignment] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, creds canvas.Credentials, course domain.Course) ([]domain.Assignment, error) {
		assignments, submissions := concurrency.Both(ctx, concurrency.ParallelOptions{},
			func(ctx context.Context) ([]canvas.Assignment, error) {
				return client.ListAssignments(ctx, creds, course.ID, opts)
			},
			func(ctx context.Context) ([]canvas.Submission, error) {
				return client.ListSubmissions(ctx, creds, course.ID, opts)
			},
		)
		if assignments.Err != nil {
			return nil, assignments.Err
		}
		subs := submissions.Value
		if submissions.Err != nil {
			logger.Debug("submissions unavailable", zap.Int64("course_id", course.ID), zap.Error(submissions.Err))
			subs = nil
		}
		return mappers.JoinSubmissions(mappers.Assignments(assignments.Value, course.ID), subs), nil
	}
}

// AnnouncementsQuery fetches a course's announcements posted in [since, until].
func AnnouncementsQuery(client *canvas.Client, since, until time.Time, opts canvas.FetchOptions) Query[domain.Announcement] {
	return func(ctx context.Context, creds canvas.Credentials, course domain.Course) ([]domain.Announcement, error) {
		raw, err := client.ListAnnouncements(ctx, creds, []int64{course.ID}, since, until, opts)
		if err != nil {
			return nil, err
		}
		return mappers.Announcements(raw), nil
	}
}
