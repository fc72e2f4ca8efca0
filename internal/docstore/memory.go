package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory keeps documents as JSON in a map. Used in tests and for the
// "memory" store driver.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]memDoc
	commits int
	writes  int
	now     func() time.Time
}

type memDoc struct {
	data      []byte
	updatedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]memDoc{}, now: time.Now}
}

func (m *Memory) Get(ctx context.Context, path string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	m.mu.RLock()
	d, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return Doc{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return decodeDoc(path, d)
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nf, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimRight(collection, "/") + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Doc{}
	for path, d := range m.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		doc, err := decodeDoc(path, d)
		if err != nil {
			return nil, err
		}
		if matches(doc.Data, nf) {
			out = append(out, doc)
		}
	}
	sortDocs(out)
	return out, nil
}

func (m *Memory) Batch() Batch {
	return &memBatch{m: m}
}

func (m *Memory) Close() error { return nil }

// Commits is the number of batches applied so far.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

// Writes is the number of documents written so far.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

type memBatch struct {
	m *Memory
	staged
}

func (b *memBatch) Set(path string, data map[string]any) { b.set(path, data) }

func (b *memBatch) Len() int { return b.len() }

func (b *memBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.len() == 0 {
		return nil
	}

	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	now := b.m.now().UTC()
	for _, path := range b.order {
		b.m.docs[path] = memDoc{data: b.data[path], updatedAt: now}
	}
	b.m.commits++
	b.m.writes += b.len()
	return nil
}

func decodeDoc(path string, d memDoc) (Doc, error) {
	var data map[string]any
	if err := json.Unmarshal(d.data, &data); err != nil {
		return Doc{}, fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return Doc{Path: path, Data: data, UpdatedAt: d.updatedAt}, nil
}
