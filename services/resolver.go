package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/aishort/models"
)

const (
	DefaultClickTimeout = 3 * time.Second
	DefaultCacheTTL     = time.Hour
)

// AliasCache is an optional read-through cache in front of FindActive.
// Implementations are best-effort: a miss or a failure simply means "ask the store".
type AliasCache interface {
	Get(ctx context.Context, alias string) (*models.URLRecord, bool)
	Set(ctx context.Context, rec *models.URLRecord, ttl time.Duration)
	Invalidate(ctx context.Context, alias string)
}

// ResolverOptions tune a Resolver. Zero values select the defaults.
type ResolverOptions struct {
	Cache        AliasCache
	CacheTTL     time.Duration
	ClickTimeout time.Duration
	Now          func() time.Time
}

// Resolver looks aliases up and counts clicks on the side.
type Resolver struct {
	store        RecordStore
	cache        AliasCache
	cacheTTL     time.Duration
	clickTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger

	clicks sync.WaitGroup
}

// NewResolver creates a Resolver over store.
func NewResolver(store RecordStore, opts ResolverOptions, logger *zap.Logger) *Resolver {
	r := &Resolver{
		store:        store,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		clickTimeout: opts.ClickTimeout,
		now:          opts.Now,
		logger:       logger,
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	if r.clickTimeout <= 0 {
		r.clickTimeout = DefaultClickTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Resolve returns the active record for alias or ErrRecordNotFound.
// A successful lookup schedules a click increment whose failure is only logged.
func (r *Resolver) Resolve(ctx context.Context, alias string) (*models.URLRecord, error) {
	now := r.now().UTC()

	if rec, ok := r.fromCache(ctx, alias, now); ok {
		r.countClick(rec.ID, alias)
		return rec, nil
	}

	rec, err := r.store.FindActive(ctx, alias, now)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if r.cache != nil {
		ttl := r.cacheTTL
		if left := rec.ExpiresAt.Sub(now); left < ttl {
			ttl = left
		}
		r.cache.Set(ctx, rec, ttl)
	}
	r.countClick(rec.ID, alias)
	return rec, nil
}

// Forget drops alias from the cache.
func (r *Resolver) Forget(ctx context.Context, alias string) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, alias)
	}
}

// Wait blocks until every scheduled click increment has finished.
func (r *Resolver) Wait() {
	r.clicks.Wait()
}

func (r *Resolver) fromCache(ctx context.Context, alias string, now time.Time) (*models.URLRecord, bool) {
	if r.cache == nil {
		return nil, false
	}
	rec, ok := r.cache.Get(ctx, alias)
	if !ok || rec == nil {
		return nil, false
	}
	if !rec.IsActive(now) || rec.Alias != alias {
		r.cache.Invalidate(ctx, alias)
		return nil, false
	}
	return rec, true
}

// countClick runs detached from the request so a slow or failing
// increment never delays or fails the redirect.
func (r *Resolver) countClick(id uint, alias string) {
	r.clicks.Add(1)
	go func() {
		defer r.clicks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.clickTimeout)
		defer cancel()
		if err := r.store.IncrementClicks(ctx, id); err != nil {
			r.logger.Warn("click increment failed",
				zap.String("alias", alias),
				zap.Uint("id", id),
				zap.Error(err),
			)
		}
	}()
}
