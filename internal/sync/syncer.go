package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/canvas"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/docstore"
	"canvas-sync/internal/domain"
	"canvas-sync/internal/logging"
	"canvas-sync/internal/mappers"
	"canvas-sync/internal/view"
)

// RunReport is the result of one full run for one owner.
type RunReport struct {
	RunID       string      `json:"runId"`
	Owner       string      `json:"owner"`
	StartedAt   time.Time   `json:"startedAt"`
	DryRun      bool        `json:"dryRun"`
	Courses     Report      `json:"courses"`
	Assignments Report      `json:"assignments"`
	Timing      view.Timing `json:"timing"`
	Errors      []string    `json:"errors"`
}

type RunOptions struct {
	DryRun      bool
	DetectStale bool
}

// Syncer runs credentials -> courses -> assignments against the snapshot.
type Syncer struct {
	resolver   credentials.Resolver
	client     *canvas.Client
	aggregator *aggregate.Aggregator
	engine     *Engine
	fetch      canvas.FetchOptions
	logger     *zap.Logger
}

func NewSyncer(resolver credentials.Resolver, client *canvas.Client, aggregator *aggregate.Aggregator, engine *Engine, fetch canvas.FetchOptions, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		resolver:   resolver,
		client:     client,
		aggregator: aggregator,
		engine:     engine,
		fetch:      fetch,
		logger:     logger.Named("syncer"),
	}
}

// Run syncs one owner. Credential and course list failures abort the run.
// Course branch failures only land in Errors and keep their assignments out
// of stale detection. Commit failures are returned joined, with the report.
func (s *Syncer) Run(ctx context.Context, owner string, opts RunOptions) (RunReport, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		runID = uuid.New()
	}
	timer := view.NewTimer(s.engine.now)
	rep := RunReport{
		RunID:       runID.String(),
		Owner:       owner,
		StartedAt:   s.engine.now().UTC(),
		DryRun:      opts.DryRun,
		Courses:     newReport(EntityCourses),
		Assignments: newReport(EntityAssignments),
		Errors:      []string{},
	}
	log := logging.With(ctx, s.logger).With(zap.String("run_id", rep.RunID), zap.String("owner", owner))

	stop := timer.Start(view.StageCredentials)
	creds, err := s.resolver.Resolve(ctx, owner)
	stop()
	if err != nil {
		rep.Timing = timer.Timing()
		return rep, err
	}

	stop = timer.Start(view.StageCourses)
	raw, err := s.client.ListCourses(ctx, creds, s.fetch)
	stop()
	if err != nil {
		rep.Timing = timer.Timing()
		return rep, fmt.Errorf("sync: list courses: %w", err)
	}
	courses := mappers.Courses(raw)

	var persistErrs []error
	stop = timer.Start(StageReconcileCourses)
	rep.Courses, err = ReconcileCourses(ctx, s.engine, owner, courses, Options{DryRun: opts.DryRun, DetectStale: opts.DetectStale})
	stop()
	if err != nil {
		rep.Errors = append(rep.Errors, logging.SanitizeError(err))
		if !isPersistence(err) {
			rep.Timing = timer.Timing()
			return rep, err
		}
		persistErrs = append(persistErrs, err)
	}

	stop = timer.Start(view.StageAssignments)
	results := aggregate.Aggregate(ctx, s.aggregator, courses, s.assignmentsQuery(), creds)
	stop()

	fresh := []domain.Assignment{}
	synced := map[float64]bool{}
	for _, r := range results {
		if r.Err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("course %d assignments: %s", r.CourseID, logging.SanitizeError(r.Err)))
			continue
		}
		synced[float64(r.CourseID)] = true
		fresh = append(fresh, r.Items...)
	}

	stop = timer.Start(StageReconcileAssignments)
	rep.Assignments, err = ReconcileAssignments(ctx, s.engine, owner, fresh, Options{
		DryRun:      opts.DryRun,
		DetectStale: opts.DetectStale,
		StaleScope: func(d docstore.Doc) bool {
			id, _ := d.Data["courseId"].(float64)
			return synced[id]
		},
	})
	stop()
	if err != nil {
		rep.Errors = append(rep.Errors, logging.SanitizeError(err))
		if !isPersistence(err) {
			rep.Timing = timer.Timing()
			return rep, err
		}
		persistErrs = append(persistErrs, err)
	}

	rep.Timing = timer.Timing()
	log.Info("sync run finished",
		zap.Int("courses_changed", rep.Courses.Changed()),
		zap.Int("assignments_changed", rep.Assignments.Changed()),
		zap.Int("errors", len(rep.Errors)),
		zap.Int64("total_ms", rep.Timing.TotalTimeMs))
	return rep, errors.Join(persistErrs...)
}

const (
	StageReconcileCourses     = "reconcileCourses"
	StageReconcileAssignments = "reconcileAssignments"
)

// assignmentsQuery skips submissions: none of the stored fields need them.
func (s *Syncer) assignmentsQuery() aggregate.Query[domain.Assignment] {
	return func(ctx context.Context, creds canvas.Credentials, c domain.Course) ([]domain.Assignment, error) {
		raw, err := s.client.ListAssignments(ctx, creds, c.ID, s.fetch)
		if err != nil {
			return nil, err
		}
		return mappers.Assignments(raw, c.ID), nil
	}
}

func isPersistence(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}
