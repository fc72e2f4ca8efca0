package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores each document as a JSON string under <prefix>doc:<path> and
// indexes it in the set <prefix>col:<collection>.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

type redisEnvelope struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedis wraps a client and pings it.
func NewRedis(ctx context.Context, rdb *redis.Client, prefix string, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("docstore: ping redis: %w", err)
	}
	return &Redis{rdb: rdb, prefix: prefix, logger: logger.Named("docstore.redis"), now: time.Now}, nil
}

func (r *Redis) docKey(path string) string       { return r.prefix + "doc:" + path }
func (r *Redis) colKey(collection string) string { return r.prefix + "col:" + collection }

func (r *Redis) Get(ctx context.Context, path string) (Doc, error) {
	raw, err := r.rdb.Get(ctx, r.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Doc{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: get %s: %w", path, err)
	}
	return decodeEnvelope(path, raw)
}

func (r *Redis) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	nf, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	paths, err := r.rdb.SMembers(ctx, r.colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: members %s: %w", collection, err)
	}
	out := []Doc{}
	if len(paths) == 0 {
		return out, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = r.docKey(p)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: mget %s: %w", collection, err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		doc, err := decodeEnvelope(paths[i], []byte(s))
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

func (r *Redis) Batch() Batch {
	return &redisBatch{r: r}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

type redisBatch struct {
	r *Redis
	staged
}

func (b *redisBatch) Set(path string, data map[string]any) { b.set(path, data) }

func (b *redisBatch) Len() int { return b.len() }

// Commit applies every write inside MULTI/EXEC.
func (b *redisBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if b.len() == 0 {
		return nil
	}

	now := b.r.now().UTC()
	payloads := make(map[string][]byte, b.len())
	for _, path := range b.order {
		raw, err := json.Marshal(redisEnvelope{Data: b.data[path], UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("docstore: encode %s: %w", path, err)
		}
		payloads[path] = raw
	}

	_, err := b.r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, path := range b.order {
			pipe.Set(ctx, b.r.docKey(path), payloads[path], 0)
			pipe.SAdd(ctx, b.r.colKey(CollectionOf(path)), path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	b.r.logger.Debug("batch committed", zap.Int("documents", b.len()))
	return nil
}

func decodeEnvelope(path string, raw []byte) (Doc, error) {
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Doc{}, fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	return decodeDoc(path, memDoc{data: env.Data, updatedAt: env.UpdatedAt})
}
