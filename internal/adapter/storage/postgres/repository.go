package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository implements ports.Repository on a PostgreSQL table with columns
// (id TEXT, version BIGINT, data JSONB). Ids are ordered with the C
// collation so paging matches byte order.
type Repository[E domain.Document] struct {
	pool   Pool
	schema domain.Schema[E]
	table  string
	batch  int
}

// NewRepository creates a PostgreSQL-backed document repository.
func NewRepository[E domain.Document](pool Pool, schema domain.Schema[E], batch int) *Repository[E] {
	if batch <= 0 {
		batch = 100
	}
	return &Repository[E]{
		pool:   pool,
		schema: schema,
		table:  pgx.Identifier{schema.Collection}.Sanitize(),
		batch:  batch,
	}
}

func (r *Repository[E]) Save(ctx context.Context, entity E) (E, error) {
	var zero E

	out := r.schema.Clone(entity)
	if out.GetID() == "" {
		out.SetID(uuid.NewString())
	}
	id := out.GetID()

	data, err := out.MarshalDocument()
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", r.schema.Name, id, err)
	}

	var version int64
	if expected := entity.GetVersion(); expected > 0 {
		version, err = r.update(ctx, id, expected, string(data))
	} else {
		err = r.pool.QueryRow(ctx, fmt.Sprintf(
			`INSERT INTO %[1]s (id, version, data) VALUES ($1, 1, $2)
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, version = %[1]s.version + 1
			RETURNING version`, r.table),
			id, string(data),
		).Scan(&version)
	}
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrVersionConflict) {
			return zero, err
		}
		return zero, fmt.Errorf("postgres save %s %s: %w", r.schema.Name, id, err)
	}

	out.SetVersion(version)
	return out, nil
}

// update is the compare-and-swap write. When no row matches it tells a
// missing document apart from a stale version.
func (r *Repository[E]) update(ctx context.Context, id string, expected int64, data string) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE %s SET data = $2, version = version + 1 WHERE id = $1 AND version = $3 RETURNING version`, r.table),
		id, data, expected,
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ports.ErrVersionConflict
	}
	return 0, ports.ErrNotFound
}

func (r *Repository[E]) FindByID(ctx context.Context, id string) (E, bool, error) {
	var zero E
	var (
		version int64
		data    []byte
	)
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT version, data FROM %s WHERE id = $1`, r.table), id).
		Scan(&version, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("postgres get %s %s: %w", r.schema.Name, id, err)
	}

	e, err := r.decode(id, version, data)
	if err != nil {
		return zero, false, err
	}
	return e, true, nil
}

func (r *Repository[E]) FindAll(ctx context.Context, page domain.PageRequest) ([]E, error) {
	query := fmt.Sprintf(`SELECT id, version, data FROM %s ORDER BY id COLLATE "C" %s`, r.table, direction(page.Desc))
	var args []any
	if page.Paged() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, page.Size, page.Offset())
	}
	return r.query(ctx, query, args...)
}

// Stream uses keyset pagination on id, one batch per query.
func (r *Repository[E]) Stream(ctx context.Context, desc bool) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		last := ""
		for {
			var (
				batch []E
				err   error
			)
			if last == "" {
				batch, err = r.query(ctx, fmt.Sprintf(
					`SELECT id, version, data FROM %s ORDER BY id COLLATE "C" %s LIMIT $1`,
					r.table, direction(desc)), r.batch)
			} else {
				cmp := ">"
				if desc {
					cmp = "<"
				}
				batch, err = r.query(ctx, fmt.Sprintf(
					`SELECT id, version, data FROM %s WHERE id COLLATE "C" %s $1 ORDER BY id COLLATE "C" %s LIMIT $2`,
					r.table, cmp, direction(desc)), last, r.batch)
			}
			if err != nil {
				yield(zero, err)
				return
			}

			for _, e := range batch {
				if !yield(e, nil) {
					return
				}
			}
			if len(batch) < r.batch {
				return
			}
			last = batch[len(batch)-1].GetID()
		}
	}
}

func (r *Repository[E]) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.table), id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres exists %s %s: %w", r.schema.Name, id, err)
	}
	return exists, nil
}

func (r *Repository[E]) DeleteByID(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return 0, fmt.Errorf("postgres delete %s %s: %w", r.schema.Name, id, err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository[E]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count %s: %w", r.schema.Name, err)
	}
	return n, nil
}

func (r *Repository[E]) query(ctx context.Context, sql string, args ...any) ([]E, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list %s: %w", r.schema.Name, err)
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		var (
			id      string
			version int64
			data    []byte
		)
		if err := rows.Scan(&id, &version, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.schema.Name, err)
		}
		e, err := r.decode(id, version, data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres list %s: %w", r.schema.Name, err)
	}
	return out, nil
}

func (r *Repository[E]) decode(id string, version int64, data []byte) (E, error) {
	var zero E
	e := r.schema.New()
	if err := e.UnmarshalDocument(data); err != nil {
		return zero, fmt.Errorf("decoding %s %s: %w", r.schema.Name, id, err)
	}
	e.SetID(id)
	e.SetVersion(version)
	return e, nil
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}
