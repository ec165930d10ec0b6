package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"fx-blockstream/internal/adapter/http/dto"
	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"
	"fx-blockstream/pkg/apperror"
	"fx-blockstream/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	MIMEMergePatch = "application/merge-patch+json"
	MIMENDJSON     = "application/x-ndjson"

	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	// how long a create may hold its Idempotency-Key before others may retry
	idempotencyLease = 30 * time.Second
)

// ResourceOptions configures the optional behavior shared by all resource handlers.
type ResourceOptions struct {
	AppName        string                 // prefix of the alert headers
	Idempotency    ports.IdempotencyCache // nil = Idempotency-Key ignored
	IdempotencyTTL time.Duration
}

// ResourceHandler serves the REST endpoints of one entity collection.
type ResourceHandler[E domain.Document] struct {
	schema domain.Schema[E]
	svc    ports.ResourceService[E]
	opts   ResourceOptions
	log    zerolog.Logger
}

// NewResourceHandler creates the handler for schema.
func NewResourceHandler[E domain.Document](
	schema domain.Schema[E],
	svc ports.ResourceService[E],
	opts ResourceOptions,
	log zerolog.Logger,
) *ResourceHandler[E] {
	return &ResourceHandler[E]{
		schema: schema,
		svc:    svc,
		opts:   opts,
		log:    log.With().Str("entity", schema.Name).Logger(),
	}
}

// Register mounts the collection under rg. read and write are applied to
// safe and unsafe methods respectively.
func (h *ResourceHandler[E]) Register(rg *gin.RouterGroup, read, write gin.HandlerFunc) {
	coll := "/" + h.schema.Path
	item := coll + "/:id"

	rg.POST(coll, write, h.Create)
	rg.PUT(item, write, h.Replace)
	rg.PATCH(item, write, h.Merge)
	rg.GET(coll, read, h.List)
	rg.GET(item, read, h.Get)
	rg.DELETE(item, write, h.Delete)
}

func (h *ResourceHandler[E]) location(id string) string {
	return "/api/" + h.schema.Path + "/" + id
}

// Create handles POST /api/{collection}.
func (h *ResourceHandler[E]) Create(c *gin.Context) {
	reqKey := ""
	if h.opts.Idempotency != nil {
		if k := c.GetHeader(HeaderIdempotencyKey); k != "" {
			reqKey = domain.BuildIdempotencyKey(h.schema.Collection, k)
			if h.replay(c, reqKey) {
				return
			}
		}
	}

	entity, ok := h.bind(c)
	if !ok {
		return
	}

	idemKey := ""
	if reqKey != "" {
		claimed, done := h.reserve(c, reqKey)
		if done {
			return
		}
		if claimed {
			idemKey = reqKey
		}
	}

	saved, err := h.svc.Create(c.Request.Context(), entity)
	if err != nil {
		if idemKey != "" {
			h.release(c, idemKey)
		}
		response.Error(c, err)
		return
	}

	loc := h.location(saved.GetID())
	response.Alert(c, h.opts.AppName, h.schema.Name, "created", saved.GetID())
	response.ETag(c, saved.GetVersion())
	response.Created(c, loc, saved)

	if idemKey != "" {
		h.remember(c, idemKey, loc, saved)
	}
}

// replay answers with the stored response for a repeated Idempotency-Key,
// or with a conflict while the first request is still running. Cache
// failures fall through to a regular create.
func (h *ResourceHandler[E]) replay(c *gin.Context, key string) bool {
	rec, err := h.opts.Idempotency.Get(c.Request.Context(), key)
	if err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed")
		return false
	}
	if rec == nil {
		return false
	}
	if rec.Pending {
		response.Error(c, apperror.IdempotencyInFlight())
		return true
	}

	c.Header("Location", rec.Location)
	if rec.ETag != "" {
		c.Header("ETag", rec.ETag)
	}
	c.Header(HeaderReplayed, "true")
	c.Data(http.StatusCreated, gin.MIMEJSON+"; charset=utf-8", rec.Body)
	return true
}

// reserve claims key before the create runs. done is true when the response
// was already written because another request holds or completed the key.
func (h *ResourceHandler[E]) reserve(c *gin.Context, key string) (claimed, done bool) {
	ok, err := h.opts.Idempotency.Reserve(c.Request.Context(), key, h.lease())
	if err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("idempotency reservation failed")
		return false, false
	}
	if ok {
		return true, false
	}
	if !h.replay(c, key) {
		response.Error(c, apperror.IdempotencyInFlight())
	}
	return false, true
}

func (h *ResourceHandler[E]) lease() time.Duration {
	if ttl := h.opts.IdempotencyTTL; ttl > 0 && ttl < idempotencyLease {
		return ttl
	}
	return idempotencyLease
}

func (h *ResourceHandler[E]) release(c *gin.Context, key string) {
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.opts.Idempotency.Release(ctx, key); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("releasing idempotency key")
	}
}

func (h *ResourceHandler[E]) remember(c *gin.Context, key, loc string, saved E) {
	body, err := json.Marshal(saved)
	if err != nil {
		h.log.Warn().Err(err).Msg("encoding idempotency record")
		return
	}
	rec := &domain.IdempotencyRecord{
		Key:       key,
		Location:  loc,
		Body:      body,
		ETag:      c.Writer.Header().Get("ETag"),
		CreatedAt: time.Now().UTC(),
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.opts.Idempotency.Set(ctx, rec, h.opts.IdempotencyTTL); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("storing idempotency record")
	}
}

// Replace handles PUT /api/{collection}/:id.
func (h *ResourceHandler[E]) Replace(c *gin.Context) {
	entity, ok := h.bind(c)
	if !ok {
		return
	}
	if !h.applyIfMatch(c, entity) {
		return
	}

	saved, err := h.svc.Replace(c.Request.Context(), c.Param("id"), entity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Alert(c, h.opts.AppName, h.schema.Name, "updated", saved.GetID())
	response.ETag(c, saved.GetVersion())
	response.OK(c, saved)
}

// Merge handles PATCH /api/{collection}/:id with a JSON merge patch.
func (h *ResourceHandler[E]) Merge(c *gin.Context) {
	if ct := c.GetHeader("Content-Type"); !acceptsPatch(ct) {
		response.Error(c, apperror.UnsupportedMediaType(ct))
		return
	}

	patch, ok := h.bind(c)
	if !ok {
		return
	}
	if !h.applyIfMatch(c, patch) {
		return
	}

	saved, err := h.svc.Merge(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Alert(c, h.opts.AppName, h.schema.Name, "updated", saved.GetID())
	response.ETag(c, saved.GetVersion())
	response.OK(c, saved)
}

func acceptsPatch(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == MIMEMergePatch || mt == gin.MIMEJSON
}

// List handles GET /api/{collection}. Clients accepting NDJSON get a stream.
func (h *ResourceHandler[E]) List(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		if dto.IsSortError(err) {
			response.Error(c, apperror.SortInvalid(h.schema.Name))
			return
		}
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page := q.ToPageRequest()

	if c.NegotiateFormat(gin.MIMEJSON, MIMENDJSON) == MIMENDJSON {
		h.stream(c, page.Desc)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	if page.Paged() {
		response.Paginate(c, page.Page, page.Size, page.LastPage(total), total)
	}
	response.OK(c, items)
}

// stream writes one JSON document per line, flushing after each so that the
// store is read no faster than the client consumes.
func (h *ResourceHandler[E]) stream(c *gin.Context, desc bool) {
	started := false
	enc := json.NewEncoder(c.Writer)

	for e, err := range h.svc.Stream(c.Request.Context(), desc) {
		if err != nil {
			if !started {
				response.Error(c, err)
				return
			}
			// Headers are gone; cut the stream short.
			h.log.Error().Err(err).Msg("stream aborted")
			c.Abort()
			return
		}
		if !started {
			c.Header("Content-Type", MIMENDJSON)
			c.Status(http.StatusOK)
			started = true
		}
		if err := enc.Encode(e); err != nil {
			h.log.Debug().Err(err).Msg("client went away while streaming")
			return
		}
		c.Writer.Flush()
	}

	if !started {
		c.Header("Content-Type", MIMENDJSON)
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
}

// Get handles GET /api/{collection}/:id.
func (h *ResourceHandler[E]) Get(c *gin.Context) {
	e, ok, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, apperror.NotFound(h.schema.Name))
		return
	}

	response.ETag(c, e.GetVersion())
	response.OK(c, e)
}

// Delete handles DELETE /api/{collection}/:id.
func (h *ResourceHandler[E]) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Alert(c, h.opts.AppName, h.schema.Name, "deleted", id)
	response.NoContent(c)
}

func (h *ResourceHandler[E]) bind(c *gin.Context) (E, bool) {
	e := h.schema.New()
	if err := c.ShouldBindJSON(e); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.PayloadTooLarge())
			return e, false
		}
		response.Error(c, apperror.Validation("Malformed "+h.schema.Name+" body"))
		return e, false
	}
	return e, true
}

// applyIfMatch turns an If-Match header into the expected version of a
// conditional write. It wins over a version in the body.
func (h *ResourceHandler[E]) applyIfMatch(c *gin.Context, e E) bool {
	tag := c.GetHeader("If-Match")
	if tag == "" || tag == "*" {
		return true
	}
	v, err := response.ParseETag(tag)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	e.SetVersion(v)
	return true
}
