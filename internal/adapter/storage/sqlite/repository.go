package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/google/uuid"
)

// Repository implements ports.Repository on a SQLite table with columns
// (id, version, data). The default BINARY collation orders ids bytewise.
type Repository[E domain.Document] struct {
	db     *sql.DB
	schema domain.Schema[E]
	table  string
	batch  int
}

// NewRepository creates a SQLite-backed document repository.
func NewRepository[E domain.Document](db *sql.DB, schema domain.Schema[E], batch int) *Repository[E] {
	if batch <= 0 {
		batch = 100
	}
	return &Repository[E]{db: db, schema: schema, table: quote(schema.Collection), batch: batch}
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
		err = r.db.QueryRowContext(ctx, fmt.Sprintf(
			`UPDATE %s SET data = ?, version = version + 1 WHERE id = ? AND version = ? RETURNING version`, r.table),
			string(data), id, expected,
		).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return zero, r.conditionalMiss(ctx, id)
		}
	} else {
		err = r.db.QueryRowContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, version, data) VALUES (?, 1, ?)
			ON CONFLICT (id) DO UPDATE SET data = excluded.data, version = version + 1
			RETURNING version`, r.table),
			id, string(data),
		).Scan(&version)
	}
	if err != nil {
		return zero, fmt.Errorf("sqlite save %s %s: %w", r.schema.Name, id, err)
	}

	out.SetVersion(version)
	return out, nil
}

func (r *Repository[E]) conditionalMiss(ctx context.Context, id string) error {
	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return ports.ErrVersionConflict
	}
	return ports.ErrNotFound
}

func (r *Repository[E]) FindByID(ctx context.Context, id string) (E, bool, error) {
	var zero E
	var (
		version int64
		data    string
	)
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT version, data FROM %s WHERE id = ?`, r.table), id).
		Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("sqlite get %s %s: %w", r.schema.Name, id, err)
	}

	e, err := r.decode(id, version, data)
	if err != nil {
		return zero, false, err
	}
	return e, true, nil
}

func (r *Repository[E]) FindAll(ctx context.Context, page domain.PageRequest) ([]E, error) {
	query := fmt.Sprintf(`SELECT id, version, data FROM %s ORDER BY id %s`, r.table, direction(page.Desc))
	var args []any
	if page.Paged() {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Size, page.Offset())
	}
	return r.query(ctx, query, args...)
}

func (r *Repository[E]) Stream(ctx context.Context, desc bool) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		cmp := ">"
		if desc {
			cmp = "<"
		}

		last := ""
		for first := true; ; first = false {
			var (
				batch []E
				err   error
			)
			if first {
				batch, err = r.query(ctx, fmt.Sprintf(
					`SELECT id, version, data FROM %s ORDER BY id %s LIMIT ?`, r.table, direction(desc)), r.batch)
			} else {
				batch, err = r.query(ctx, fmt.Sprintf(
					`SELECT id, version, data FROM %s WHERE id %s ? ORDER BY id %s LIMIT ?`,
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
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, r.table), id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite exists %s %s: %w", r.schema.Name, id, err)
	}
	return exists, nil
}

func (r *Repository[E]) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table), id)
	if err != nil {
		return 0, fmt.Errorf("sqlite delete %s %s: %w", r.schema.Name, id, err)
	}
	return res.RowsAffected()
}

func (r *Repository[E]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count %s: %w", r.schema.Name, err)
	}
	return n, nil
}

func (r *Repository[E]) query(ctx context.Context, query string, args ...any) ([]E, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite list %s: %w", r.schema.Name, err)
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		var (
			id      string
			version int64
			data    string
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
		return nil, fmt.Errorf("sqlite list %s: %w", r.schema.Name, err)
	}
	return out, nil
}

func (r *Repository[E]) decode(id string, version int64, data string) (E, error) {
	var zero E
	e := r.schema.New()
	if err := e.UnmarshalDocument([]byte(data)); err != nil {
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
