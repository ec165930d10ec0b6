package service

import (
	"context"
	"errors"
	"iter"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/merge"
	"fx-blockstream/internal/core/ports"
	"fx-blockstream/pkg/apperror"

	"github.com/rs/zerolog"
)

// PrepareFunc transforms client input before it is persisted.
type PrepareFunc[E domain.Document] func(ctx context.Context, entity E) error

// ResourceService implements ports.ResourceService for one entity type.
//
// Identity validation always happens before the first repository call.
// Writes run detached from the caller's cancellation so a disconnecting
// client cannot abort a store operation halfway.
type ResourceService[E domain.Document] struct {
	schema  domain.Schema[E]
	repo    ports.Repository[E]
	prepare PrepareFunc[E]
	log     zerolog.Logger
}

// Option configures a ResourceService.
type Option[E domain.Document] func(*ResourceService[E])

// WithPrepare installs a hook run on every create, replace and merge input.
func WithPrepare[E domain.Document](fn PrepareFunc[E]) Option[E] {
	return func(s *ResourceService[E]) { s.prepare = fn }
}

// NewResourceService creates the resource service for schema backed by repo.
func NewResourceService[E domain.Document](
	schema domain.Schema[E],
	repo ports.Repository[E],
	log zerolog.Logger,
	opts ...Option[E],
) *ResourceService[E] {
	s := &ResourceService[E]{
		schema: schema,
		repo:   repo,
		log:    log.With().Str("entity", schema.Name).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResourceService[E]) Create(ctx context.Context, entity E) (E, error) {
	var zero E
	s.log.Debug().Msg("REST request to save " + s.schema.Name)

	if entity.GetID() != "" {
		return zero, apperror.IDExists(s.schema.Name)
	}
	entity.SetVersion(0)
	if err := s.runPrepare(ctx, entity); err != nil {
		return zero, err
	}

	saved, err := s.repo.Save(context.WithoutCancel(ctx), entity)
	if err != nil {
		return zero, s.writeErr("create", "", err)
	}
	return saved, nil
}

func (s *ResourceService[E]) Replace(ctx context.Context, id string, entity E) (E, error) {
	var zero E
	s.log.Debug().Str("id", id).Msg("REST request to update " + s.schema.Name)

	if err := s.checkIdentity(id, entity); err != nil {
		return zero, err
	}

	var stored E
	if len(s.schema.WriteOnly) > 0 {
		found, ok, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return zero, s.storeErr("update", id, err)
		}
		if !ok {
			return zero, apperror.IDNotFound(s.schema.Name)
		}
		stored = found
	} else {
		ok, err := s.repo.ExistsByID(ctx, id)
		if err != nil {
			return zero, s.storeErr("update", id, err)
		}
		if !ok {
			return zero, apperror.IDNotFound(s.schema.Name)
		}
	}

	if err := s.runPrepare(ctx, entity); err != nil {
		return zero, err
	}
	if len(s.schema.WriteOnly) > 0 {
		merge.Fill(entity, stored, s.schema.WriteOnly)
	}

	saved, err := s.repo.Save(context.WithoutCancel(ctx), entity)
	if err != nil {
		return zero, s.writeErr("update", id, err)
	}
	return saved, nil
}

func (s *ResourceService[E]) Merge(ctx context.Context, id string, patch E) (E, error) {
	var zero E
	s.log.Debug().Str("id", id).Msg("REST request to partial update " + s.schema.Name)

	if err := s.checkIdentity(id, patch); err != nil {
		return zero, err
	}

	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return zero, s.storeErr("merge", id, err)
	}
	if !exists {
		return zero, apperror.IDNotFound(s.schema.Name)
	}

	stored, ok, err := s.repo.FindByID(ctx, patch.GetID())
	if err != nil {
		return zero, s.storeErr("merge", id, err)
	}
	if !ok {
		return zero, apperror.NotFound(s.schema.Name)
	}

	if err := s.runPrepare(ctx, patch); err != nil {
		return zero, err
	}
	merged, applied := merge.Apply(stored, patch, s.schema.MergeFields, s.schema.Clone)
	// A stored version only guards the write when the client sent one.
	merged.SetVersion(patch.GetVersion())
	s.log.Debug().Str("id", id).Strs("fields", applied).Msg("merged patch")

	saved, err := s.repo.Save(context.WithoutCancel(ctx), merged)
	if err != nil {
		return zero, s.writeErr("merge", id, err)
	}
	return saved, nil
}

// List returns one page (or everything when page is unbounded) and the
// collection size.
func (s *ResourceService[E]) List(ctx context.Context, page domain.PageRequest) ([]E, int64, error) {
	s.log.Debug().Int("page", page.Page).Int("size", page.Size).Msg("REST request to get all " + s.schema.Name)

	items, err := s.repo.FindAll(ctx, page)
	if err != nil {
		return nil, 0, s.storeErr("list", "", err)
	}
	if !page.Paged() {
		return items, int64(len(items)), nil
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, s.storeErr("count", "", err)
	}
	return items, total, nil
}

// Stream yields the whole collection lazily. A store failure ends the
// sequence with an opaque error.
func (s *ResourceService[E]) Stream(ctx context.Context, desc bool) iter.Seq2[E, error] {
	s.log.Debug().Msg("REST request to stream all " + s.schema.Name)

	return func(yield func(E, error) bool) {
		for e, err := range s.repo.Stream(ctx, desc) {
			if err != nil {
				var zero E
				yield(zero, s.storeErr("stream", "", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *ResourceService[E]) Get(ctx context.Context, id string) (E, bool, error) {
	var zero E
	s.log.Debug().Str("id", id).Msg("REST request to get " + s.schema.Name)

	e, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return zero, false, s.storeErr("get", id, err)
	}
	return e, ok, nil
}

func (s *ResourceService[E]) Delete(ctx context.Context, id string) error {
	s.log.Debug().Str("id", id).Msg("REST request to delete " + s.schema.Name)

	if _, err := s.repo.DeleteByID(context.WithoutCancel(ctx), id); err != nil {
		return s.storeErr("delete", id, err)
	}
	return nil
}

func (s *ResourceService[E]) checkIdentity(id string, entity E) error {
	if entity.GetID() == "" {
		return apperror.IDNull(s.schema.Name)
	}
	if entity.GetID() != id {
		return apperror.IDInvalid(s.schema.Name)
	}
	return nil
}

func (s *ResourceService[E]) runPrepare(ctx context.Context, entity E) error {
	if s.prepare == nil {
		return nil
	}
	if err := s.prepare(ctx, entity); err != nil {
		return s.storeErr("prepare", entity.GetID(), err)
	}
	return nil
}

// writeErr maps the sentinel outcomes of a conditional save.
func (s *ResourceService[E]) writeErr(op, id string, err error) error {
	switch {
	case errors.Is(err, ports.ErrVersionConflict):
		s.log.Info().Str("operation", op).Str("id", id).Msg("version conflict")
		return apperror.VersionConflict(s.schema.Name)
	case errors.Is(err, ports.ErrNotFound):
		return apperror.NotFound(s.schema.Name)
	}
	return s.storeErr(op, id, err)
}

func (s *ResourceService[E]) storeErr(op, id string, err error) error {
	s.log.Error().Err(err).Str("operation", op).Str("id", id).Msg("persistence failure")
	return apperror.ErrStoreFailure(err)
}

var (
	_ ports.ResourceService[*domain.Currency]   = (*ResourceService[*domain.Currency])(nil)
	_ ports.ResourceService[*domain.Customer]   = (*ResourceService[*domain.Customer])(nil)
	_ ports.ResourceService[*domain.SmartTrade] = (*ResourceService[*domain.SmartTrade])(nil)
	_ ports.ResourceService[*domain.Wallet]     = (*ResourceService[*domain.Wallet])(nil)
)
