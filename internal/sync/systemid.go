package sync

import (
	"strconv"
	"strings"

	"canvas-sync/internal/docstore"
)

const (
	EntityCourses     = "courses"
	EntityAssignments = "assignments"
)

// CollectionPath is users/{owner}/{entityType}.
func CollectionPath(owner, entityType string) string {
	return docstore.Join("users", owner, entityType)
}

// RecordPath is users/{owner}/{entityType}/{externalID}. One record per
// (owner, entity type, external id) follows from the addressing.
func RecordPath(owner, entityType, externalID string) string {
	return docstore.Join(CollectionPath(owner, entityType), externalID)
}

// BuildExternalID formats a Canvas id as a document id.
func BuildExternalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func norm(s string) string {
	return strings.TrimSpace(s)
}
