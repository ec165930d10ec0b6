package redis

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// saveScript writes a document and bumps its version atomically.
// KEYS[1] document hash, KEYS[2] id index.
// ARGV[1] id, ARGV[2] expected version (0 = unconditional), ARGV[3] data.
// Returns the new version, -1 on a version mismatch, -2 when a conditional
// write targets a missing document.
var saveScript = goredis.NewScript(`
local expected = tonumber(ARGV[2])
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if expected > 0 then
  if current == 0 then
    return -2
  end
  if current ~= expected then
    return -1
  end
end
local nextVersion = current + 1
redis.call('HSET', KEYS[1], 'data', ARGV[3], 'version', nextVersion)
redis.call('ZADD', KEYS[2], 0, ARGV[1])
return nextVersion
`)

// Repository implements ports.Repository on Redis.
//
// Each document is a hash doc:<collection>:<id> with fields data and
// version. A sorted set idx:<collection> holds every id with score 0 so that
// lexicographic range queries page through the collection in id order.
type Repository[E domain.Document] struct {
	client *goredis.Client
	schema domain.Schema[E]
	batch  int
}

// NewRepository creates a Redis-backed document repository. batch is the
// number of documents fetched per round-trip while streaming.
func NewRepository[E domain.Document](client *goredis.Client, schema domain.Schema[E], batch int) *Repository[E] {
	if batch <= 0 {
		batch = 100
	}
	return &Repository[E]{client: client, schema: schema, batch: batch}
}

func (r *Repository[E]) docKey(id string) string {
	return "doc:" + r.schema.Collection + ":" + id
}

func (r *Repository[E]) indexKey() string {
	return "idx:" + r.schema.Collection
}

// Save inserts or replaces a document. A non-zero version on entity makes the
// write conditional on the stored version.
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

	res, err := saveScript.Run(ctx, r.client,
		[]string{r.docKey(id), r.indexKey()},
		id, entity.GetVersion(), data,
	).Int64()
	if err != nil {
		return zero, fmt.Errorf("redis save %s %s: %w", r.schema.Name, id, err)
	}

	switch res {
	case -1:
		return zero, ports.ErrVersionConflict
	case -2:
		return zero, ports.ErrNotFound
	}
	out.SetVersion(res)
	return out, nil
}

func (r *Repository[E]) FindByID(ctx context.Context, id string) (E, bool, error) {
	var zero E

	vals, err := r.client.HMGet(ctx, r.docKey(id), "data", "version").Result()
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s %s: %w", r.schema.Name, id, err)
	}
	e, ok, err := r.decode(id, vals)
	if err != nil {
		return zero, false, err
	}
	return e, ok, nil
}

// FindAll returns one page of documents ordered by id, or all of them when
// the page request is unbounded.
func (r *Repository[E]) FindAll(ctx context.Context, page domain.PageRequest) ([]E, error) {
	by := &goredis.ZRangeBy{Min: "-", Max: "+"}
	if page.Paged() {
		by.Offset = page.Offset()
		by.Count = int64(page.Size)
	}

	ids, err := r.rangeIDs(ctx, by, page.Desc)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, ids)
}

// Stream walks the id index in batches, resuming each range strictly after
// the last id seen. Every range call re-reads the index, so documents added
// or removed while streaming may or may not be observed.
func (r *Repository[E]) Stream(ctx context.Context, desc bool) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		last := ""
		for {
			by := &goredis.ZRangeBy{Min: "-", Max: "+", Count: int64(r.batch)}
			if last != "" {
				if desc {
					by.Max = "(" + last
				} else {
					by.Min = "(" + last
				}
			}

			ids, err := r.rangeIDs(ctx, by, desc)
			if err != nil {
				yield(zero, err)
				return
			}
			if len(ids) == 0 {
				return
			}

			docs, err := r.fetch(ctx, ids)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, d := range docs {
				if !yield(d, nil) {
					return
				}
			}

			if len(ids) < r.batch {
				return
			}
			last = ids[len(ids)-1]
		}
	}
}

func (r *Repository[E]) ExistsByID(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.docKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s %s: %w", r.schema.Name, id, err)
	}
	return n == 1, nil
}

func (r *Repository[E]) DeleteByID(ctx context.Context, id string) (int64, error) {
	var del *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, r.docKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis delete %s %s: %w", r.schema.Name, id, err)
	}
	return del.Val(), nil
}

func (r *Repository[E]) Count(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count %s: %w", r.schema.Name, err)
	}
	return n, nil
}

func (r *Repository[E]) rangeIDs(ctx context.Context, by *goredis.ZRangeBy, desc bool) ([]string, error) {
	var cmd *goredis.StringSliceCmd
	if desc {
		cmd = r.client.ZRevRangeByLex(ctx, r.indexKey(), by)
	} else {
		cmd = r.client.ZRangeByLex(ctx, r.indexKey(), by)
	}
	ids, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w", r.schema.Name, err)
	}
	return ids, nil
}

// fetch loads documents for ids in one pipeline, preserving order. Ids whose
// document disappeared since the index was read are skipped.
func (r *Repository[E]) fetch(ctx context.Context, ids []string) ([]E, error) {
	if len(ids) == 0 {
		return []E{}, nil
	}

	cmds := make([]*goredis.SliceCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, r.docKey(id), "data", "version")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis fetch %s: %w", r.schema.Name, err)
	}

	out := make([]E, 0, len(ids))
	for i, cmd := range cmds {
		e, ok, err := r.decode(ids[i], cmd.Val())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Repository[E]) decode(id string, vals []interface{}) (E, bool, error) {
	var zero E
	if len(vals) != 2 || vals[0] == nil {
		return zero, false, nil
	}

	data, _ := vals[0].(string)
	version, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return zero, false, fmt.Errorf("decoding %s %s version: %w", r.schema.Name, id, err)
	}

	e := r.schema.New()
	if err := e.UnmarshalDocument([]byte(data)); err != nil {
		return zero, false, fmt.Errorf("decoding %s %s: %w", r.schema.Name, id, err)
	}
	e.SetID(id)
	e.SetVersion(version)
	return e, true, nil
}
