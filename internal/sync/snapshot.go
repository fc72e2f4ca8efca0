package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"canvas-sync/internal/docstore"
)

// SnapshotCourses lists the owner's stored courses, optionally by status.
func (e *Engine) SnapshotCourses(ctx context.Context, owner, status string) ([]CourseSnapshot, error) {
	var filters []docstore.Filter
	if status != "" {
		filters = append(filters, docstore.Where("status", status))
	}
	return query[CourseSnapshot](ctx, e.store, owner, EntityCourses, filters...)
}

// SnapshotAssignments lists the owner's stored assignments of one course.
func (e *Engine) SnapshotAssignments(ctx context.Context, owner string, courseID int64) ([]AssignmentSnapshot, error) {
	return query[AssignmentSnapshot](ctx, e.store, owner, EntityAssignments, docstore.Where("courseId", courseID))
}

func query[T any](ctx context.Context, store docstore.Store, owner, entityType string, filters ...docstore.Filter) ([]T, error) {
	if err := docstore.ValidSegment(owner); err != nil {
		return nil, err
	}
	docs, err := store.Query(ctx, CollectionPath(owner, entityType), filters...)
	if err != nil {
		return nil, fmt.Errorf("sync: query %s: %w", entityType, err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d.Data)
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("sync: decode %s: %w", d.Path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
