package sync

import (
	"fmt"
	"time"

	"canvas-sync/internal/docstore"
)

// Outcome of one entity in a run.
type Status string

const (
	StatusInserted  Status = "inserted"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
	StatusStale     Status = "stale"
)

type Detail struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Report is the outcome of reconciling one entity type. It is never persisted.
type Report struct {
	EntityType string   `json:"entityType"`
	Total      int      `json:"total"`
	Inserted   int      `json:"inserted"`
	Updated    int      `json:"updated"`
	Unchanged  int      `json:"unchanged"`
	Failed     int      `json:"failed"`
	Stale      int      `json:"stale"`
	Details    []Detail `json:"details"`
	Committed  bool     `json:"committed"`
}

func newReport(entityType string) Report {
	return Report{EntityType: entityType, Details: []Detail{}}
}

func (r *Report) add(d Detail) {
	switch d.Status {
	case StatusInserted:
		r.Inserted++
	case StatusUpdated:
		r.Updated++
	case StatusUnchanged:
		r.Unchanged++
	case StatusFailed:
		r.Failed++
	case StatusStale:
		r.Stale++
	}
	r.Details = append(r.Details, d)
}

// Changed is the number of records the run writes.
func (r Report) Changed() int {
	return r.Inserted + r.Updated + r.Stale
}

// Projection turns a fresh entity into its snapshot record.
type Projection[T any] struct {
	EntityType string

	// ID returns the external id. An error marks the entity failed.
	ID func(T) (string, error)

	Name func(T) string

	// Fields is the full projected record written on insert and update.
	Fields func(T) map[string]any

	// Compare lists the fields whose change triggers an update.
	Compare []string
}

// Options for one Reconcile call.
type Options struct {
	// DryRun computes the report without writing.
	DryRun bool

	// DetectStale flags snapshot records that are missing from the fresh set.
	DetectStale bool

	// StaleScope limits stale detection to records it accepts. nil accepts all.
	StaleScope func(docstore.Doc) bool
}

// PersistenceError is a failed batch commit for one entity type.
type PersistenceError struct {
	EntityType string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("sync: persist %s: %v", e.EntityType, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Snapshot record fields written by the engine itself.
const (
	fieldUpdatedAt = "updatedAt"
	fieldStale     = "stale"
)

// CourseSnapshot is a stored course record.
type CourseSnapshot struct {
	CanvasID  int64      `json:"canvasId"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	Term      string     `json:"term"`
	StartAt   *time.Time `json:"startAt"`
	EndAt     *time.Time `json:"endAt"`
	Status    string     `json:"status"`
	Stale     bool       `json:"stale"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AssignmentSnapshot is a stored assignment record.
type AssignmentSnapshot struct {
	CanvasID       int64      `json:"canvasId"`
	CourseID       int64      `json:"courseId"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	DueAt          *time.Time `json:"dueAt"`
	PointsPossible *float64   `json:"pointsPossible"`
	HasSubmissions bool       `json:"hasSubmissions"`
	Stale          bool       `json:"stale"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
