// Package docstore is a small hierarchical document store: documents live at
// slash-separated paths (collection/doc/collection/doc...), can be read one at
// a time, filtered by field equality within a collection, and written in
// atomic batches.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("docstore: document not found")
	ErrInvalidPath = errors.New("docstore: invalid document path")
)

// Doc is one stored document. Data always holds JSON-normalized values
// (numbers are float64, times are RFC3339 strings).
type Doc struct {
	Path      string
	Data      map[string]any
	UpdatedAt time.Time
}

// ID is the last path segment.
func (d Doc) ID() string {
	return d.Path[strings.LastIndex(d.Path, "/")+1:]
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

type Store interface {
	Get(ctx context.Context, path string) (Doc, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error)
	Batch() Batch
	Close() error
}

// Batch stages writes and applies them all-or-nothing on Commit.
// A later Set on the same path replaces the earlier one.
type Batch interface {
	Set(path string, data map[string]any)
	Len() int
	Commit(ctx context.Context) error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath checks a document path: non-empty segments, an even count.
func ValidatePath(path string) error {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return fmt.Errorf("%w: %q has an odd number of segments", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

// CollectionOf returns the collection path that holds a document.
func CollectionOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Normalize round-trips v through JSON so that values compare the same way
// they will after being stored.
func Normalize(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(b, &out)
	return out, err
}

func matches(data map[string]any, filters []normalizedFilter) bool {
	for _, f := range filters {
		v, ok := data[f.field]
		if !ok || !reflect.DeepEqual(v, f.value) {
			return false
		}
	}
	return true
}

type normalizedFilter struct {
	field string
	value any
}

func normalizeFilters(filters []Filter) ([]normalizedFilter, error) {
	out := make([]normalizedFilter, 0, len(filters))
	for _, f := range filters {
		if strings.TrimSpace(f.Field) == "" {
			return nil, errors.New("docstore: filter without field")
		}
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("docstore: filter %s: %w", f.Field, err)
		}
		out = append(out, normalizedFilter{field: f.Field, value: v})
	}
	return out, nil
}

func sortDocs(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
}

// staged is shared by the backends' batches.
type staged struct {
	order []string
	data  map[string][]byte
	err   error
}

func (s *staged) set(path string, data map[string]any) {
	if s.err != nil {
		return
	}
	if err := ValidatePath(path); err != nil {
		s.err = err
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		s.err = fmt.Errorf("docstore: encode %s: %w", path, err)
		return
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	if _, ok := s.data[path]; !ok {
		s.order = append(s.order, path)
	}
	s.data[path] = b
}

func (s *staged) len() int { return len(s.order) }

// ValidSegment checks a single path segment such as an owner id.
func ValidSegment(s string) error {
	if strings.TrimSpace(s) == "" || strings.Contains(s, "/") {
		return fmt.Errorf("%w: bad segment %q", ErrInvalidPath, s)
	}
	return nil
}
