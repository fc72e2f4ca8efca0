package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres stores documents in the documents table (see migrations/).
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres opens a pool and verifies the connection.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("docstore: ping postgres: %w", err)
	}
	return NewPostgresFromPool(pool, logger), nil
}

func NewPostgresFromPool(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger.Named("docstore.postgres")}
}

func (p *Postgres) Get(ctx context.Context, path string) (Doc, error) {
	var raw []byte
	var updated time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE path = $1`, path,
	).Scan(&raw, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Doc{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: get %s: %w", path, err)
	}
	return decodeDoc(path, memDoc{data: raw, updatedAt: updated.UTC()})
}

// Query uses jsonb containment, which matches the equality semantics of the
// other backends for scalar values.
func (p *Postgres) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	nf, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	cond := make(map[string]any, len(nf))
	for _, f := range nf {
		cond[f.field] = f.value
	}
	condJSON, err := json.Marshal(cond)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode filters: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT path, data, updated_at FROM documents
		 WHERE collection = $1 AND data @> $2::jsonb
		 ORDER BY path`,
		collection, condJSON)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var path string
		var raw []byte
		var updated time.Time
		if err := rows.Scan(&path, &raw, &updated); err != nil {
			return nil, fmt.Errorf("docstore: scan %s: %w", collection, err)
		}
		doc, err := decodeDoc(path, memDoc{data: raw, updatedAt: updated.UTC()})
		if err != nil {
			return nil, err
		}
		// containment is looser than equality for arrays and objects
		if matches(doc.Data, nf) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	return out, nil
}

func (p *Postgres) Batch() Batch {
	return &pgBatch{p: p}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgBatch struct {
	p *Postgres
	staged
}

func (b *pgBatch) Set(path string, data map[string]any) { b.set(path, data) }

func (b *pgBatch) Len() int { return b.len() }

func (b *pgBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if b.len() == 0 {
		return nil
	}

	tx, err := b.p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("docstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, path := range b.order {
		batch.Queue(
			`INSERT INTO documents (path, collection, data, updated_at)
			 VALUES ($1, $2, $3::jsonb, now())
			 ON CONFLICT (path) DO UPDATE
			 SET collection = EXCLUDED.collection, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
			path, CollectionOf(path), b.data[path])
	}

	results := tx.SendBatch(ctx, batch)
	for range b.order {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("docstore: upsert: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("docstore: upsert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	b.p.logger.Debug("batch committed", zap.Int("documents", b.len()))
	return nil
}
