package sync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/docstore"
	"canvas-sync/internal/domain"
)

var (
	errMissingID   = errors.New("missing external id")
	errDuplicateID = errors.New("duplicate external id in batch")
)

// Engine diffs fresh Canvas entities against an owner's snapshot records and
// writes only what changed.
type Engine struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(store docstore.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger.Named("sync"), now: time.Now}
}

// Reconcile runs the per-entity state machine:
//
//	absent            -> inserted  (full record written)
//	present, same     -> unchanged (nothing written)
//	present, changed  -> updated   (full record overwritten)
//
// A bad entity is reported failed and the others go on. All writes of the
// call go in one batch; nothing is committed when nothing changed. A commit
// failure is returned as *PersistenceError along with the report.
// Records missing from fresh are never deleted; with DetectStale they are
// flagged stale, unless some entity failed.
func Reconcile[T any](ctx context.Context, e *Engine, owner string, fresh []T, proj Projection[T], opts Options) (Report, error) {
	report := newReport(proj.EntityType)
	report.Total = len(fresh)

	if err := docstore.ValidSegment(owner); err != nil {
		return report, err
	}

	collection := CollectionPath(owner, proj.EntityType)
	existingDocs, err := e.store.Query(ctx, collection)
	if err != nil {
		return report, fmt.Errorf("sync: load %s snapshot: %w", proj.EntityType, err)
	}
	existing := make(map[string]docstore.Doc, len(existingDocs))
	for _, d := range existingDocs {
		existing[d.ID()] = d
	}

	now := e.now().UTC()
	batch := e.store.Batch()
	seen := map[string]bool{}

	for _, item := range fresh {
		detail, record := reconcileOne(item, proj, existing, seen)
		if record != nil {
			record[fieldUpdatedAt] = now.Format(time.RFC3339Nano)
			record[fieldStale] = false
			batch.Set(docstore.Join(collection, detail.ID), record)
		}
		if detail.Status == StatusFailed {
			e.logger.Warn("entity failed",
				zap.String("owner", owner),
				zap.String("entity_type", proj.EntityType),
				zap.String("id", detail.ID),
				zap.String("reason", detail.Reason))
		}
		report.add(detail)
	}

	if opts.DetectStale && report.Failed == 0 {
		for _, d := range existingDocs {
			if seen[d.ID()] || isStale(d) {
				continue
			}
			if opts.StaleScope != nil && !opts.StaleScope(d) {
				continue
			}
			record := cloneData(d.Data)
			record[fieldStale] = true
			record[fieldUpdatedAt] = now.Format(time.RFC3339Nano)
			batch.Set(d.Path, record)
			name, _ := d.Data["name"].(string)
			report.add(Detail{ID: d.ID(), Name: name, Status: StatusStale, Reason: "not returned by Canvas"})
		}
	}

	if batch.Len() == 0 || opts.DryRun {
		e.logger.Info("reconciled",
			zap.String("owner", owner),
			zap.String("entity_type", proj.EntityType),
			zap.Int("changed", report.Changed()),
			zap.Bool("dry_run", opts.DryRun))
		return report, nil
	}

	if err := batch.Commit(ctx); err != nil {
		return report, &PersistenceError{EntityType: proj.EntityType, Err: err}
	}
	report.Committed = true
	e.logger.Info("reconciled",
		zap.String("owner", owner),
		zap.String("entity_type", proj.EntityType),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Int("stale", report.Stale))
	return report, nil
}

// reconcileOne returns the detail for item and the record to write, if any.
func reconcileOne[T any](item T, proj Projection[T], existing map[string]docstore.Doc, seen map[string]bool) (detail Detail, record map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			detail = Detail{ID: detail.ID, Name: detail.Name, Status: StatusFailed, Reason: fmt.Sprintf("projection panicked: %v", r)}
			record = nil
		}
	}()

	id, err := proj.ID(item)
	if err == nil && docstore.ValidSegment(id) != nil {
		err = errMissingID
	}
	if proj.Name != nil {
		detail.Name = norm(proj.Name(item))
	}
	if err != nil {
		return Detail{Name: detail.Name, Status: StatusFailed, Reason: err.Error()}, nil
	}
	detail.ID = id

	if seen[id] {
		detail.Status, detail.Reason = StatusFailed, errDuplicateID.Error()
		return detail, nil
	}
	seen[id] = true

	fields, err := docstore.Normalize(proj.Fields(item))
	if err != nil {
		detail.Status, detail.Reason = StatusFailed, "cannot encode record: "+err.Error()
		return detail, nil
	}

	prev, ok := existing[id]
	switch {
	case !ok:
		detail.Status = StatusInserted
		return detail, fields
	case isStale(prev):
		detail.Status, detail.Reason = StatusUpdated, "returned by Canvas again"
		return detail, fields
	}

	if changed := needsUpdate(fields, prev.Data, proj.Compare); len(changed) > 0 {
		detail.Status, detail.Reason = StatusUpdated, fmt.Sprintf("changed: %v", changed)
		return detail, fields
	}
	detail.Status = StatusUnchanged
	return detail, nil
}

// needsUpdate returns the compared fields that differ. Values are JSON
// normalized on both sides, so equality is structural.
func needsUpdate(fresh, stored map[string]any, compare []string) []string {
	var changed []string
	for _, f := range compare {
		fv, fok := fresh[f]
		sv, sok := stored[f]
		if fok != sok || !reflect.DeepEqual(fv, sv) {
			changed = append(changed, f)
		}
	}
	return changed
}

func isStale(d docstore.Doc) bool {
	v, _ := d.Data[fieldStale].(bool)
	return v
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CourseFields are compared to decide whether a course record is updated.
var CourseFields = []string{"name", "code", "term", "startAt", "endAt", "status"}

// AssignmentFields are compared to decide whether an assignment record is updated.
var AssignmentFields = []string{"name", "description", "dueAt", "pointsPossible", "hasSubmissions"}

// CourseProjection derives status against now.
func CourseProjection(now time.Time) Projection[domain.Course] {
	return Projection[domain.Course]{
		EntityType: EntityCourses,
		ID: func(c domain.Course) (string, error) {
			if c.ID <= 0 {
				return "", errMissingID
			}
			return BuildExternalID(c.ID), nil
		},
		Name: func(c domain.Course) string { return c.Name },
		Fields: func(c domain.Course) map[string]any {
			return map[string]any{
				"canvasId": c.ID,
				"name":     norm(c.Name),
				"code":     norm(c.Code),
				"term":     norm(c.TermName()),
				"startAt":  c.StartAt,
				"endAt":    c.EffectiveEnd(),
				"status":   string(c.Status(now)),
			}
		},
		Compare: CourseFields,
	}
}

func AssignmentProjection() Projection[domain.Assignment] {
	return Projection[domain.Assignment]{
		EntityType: EntityAssignments,
		ID: func(a domain.Assignment) (string, error) {
			if a.ID <= 0 {
				return "", errMissingID
			}
			if a.CourseID <= 0 {
				return "", errors.New("missing course id")
			}
			return BuildExternalID(a.ID), nil
		},
		Name: func(a domain.Assignment) string { return a.Name },
		Fields: func(a domain.Assignment) map[string]any {
			return map[string]any{
				"canvasId":       a.ID,
				"courseId":       a.CourseID,
				"name":           norm(a.Name),
				"description":    a.Description,
				"dueAt":          a.DueAt,
				"pointsPossible": a.PointsPossible,
				"hasSubmissions": a.HasSubmissions,
			}
		},
		Compare: AssignmentFields,
	}
}

func ReconcileCourses(ctx context.Context, e *Engine, owner string, fresh []domain.Course, opts Options) (Report, error) {
	return Reconcile(ctx, e, owner, fresh, CourseProjection(e.now()), opts)
}

func ReconcileAssignments(ctx context.Context, e *Engine, owner string, fresh []domain.Assignment, opts Options) (Report, error) {
	return Reconcile(ctx, e, owner, fresh, AssignmentProjection(), opts)
}
