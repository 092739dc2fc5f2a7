package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/aishort/models"
)

const (
	maxURLLength   = 2048
	minAliasLength = 3
	maxAliasLength = 64
	sweepBatch     = 500

	DefaultRetention = 7 * 24 * time.Hour
)

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedAliases shadow root-level routes; a short link under one of them could never redirect.
var reservedAliases = map[string]struct{}{
	"api":    {},
	"health": {},
}

// SubmitRequest is the input of Shortener.Submit.
type SubmitRequest struct {
	URL string
	// Alias, when set, skips synthesis but still goes through the uniqueness check.
	Alias   string
	OwnerID *string
}

// Actor identifies who asks for a mutation.
type Actor struct {
	OwnerID string
	Admin   bool
}

// Page is one slice of a listing.
type Page struct {
	Items    []models.URLRecord `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int64              `json:"total"`
}

// Shortener is the entry point used by the HTTP layer.
type Shortener struct {
	store     RecordStore
	allocator *Allocator
	resolver  *Resolver
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// ShortenerOptions carry the knobs that do not belong to a single component.
type ShortenerOptions struct {
	Retention time.Duration
	Now       func() time.Time
}

// NewShortener assembles a Shortener from its parts.
func NewShortener(store RecordStore, allocator *Allocator, resolver *Resolver, opts ShortenerOptions, logger *zap.Logger) *Shortener {
	s := &Shortener{
		store:     store,
		allocator: allocator,
		resolver:  resolver,
		retention: opts.Retention,
		now:       opts.Now,
		logger:    logger,
	}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Submit validates the request and persists a new record under a unique alias.
func (s *Shortener) Submit(ctx context.Context, req SubmitRequest) (*models.URLRecord, error) {
	target, err := NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	alias := strings.TrimSpace(req.Alias)
	if alias == "" {
		return s.allocator.Allocate(ctx, target, req.OwnerID)
	}
	if err := ValidateAlias(alias); err != nil {
		return nil, err
	}
	return s.allocator.Claim(ctx, target, alias, req.OwnerID)
}

// Resolve returns the active record for alias.
func (s *Shortener) Resolve(ctx context.Context, alias string) (*models.URLRecord, error) {
	if ValidateAlias(alias) != nil {
		// nothing malformed can ever have been stored
		return nil, ErrRecordNotFound
	}
	return s.resolver.Resolve(ctx, alias)
}

// Delete soft-deletes alias on behalf of actor. Owners may delete their own
// records; anonymous records and foreign ones require an admin.
func (s *Shortener) Delete(ctx context.Context, alias string, actor Actor) (*models.URLRecord, error) {
	rec, err := s.store.Find(ctx, alias)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !rec.Owned(actor.OwnerID) {
		return nil, ErrForbidden
	}

	deleted, err := s.store.SoftDelete(ctx, alias)
	if err != nil {
		return nil, err
	}
	s.resolver.Forget(ctx, alias)
	s.logger.Info("alias deleted",
		zap.String("alias", alias),
		zap.String("actor", actor.OwnerID),
		zap.Bool("admin", actor.Admin),
	)
	return deleted, nil
}

// Purge removes the row for alias outright. Administrative only.
func (s *Shortener) Purge(ctx context.Context, alias string) (*models.URLRecord, error) {
	rec, err := s.store.HardDelete(ctx, alias)
	if err != nil {
		return nil, err
	}
	s.resolver.Forget(ctx, alias)
	s.logger.Info("alias purged", zap.String("alias", alias), zap.Uint("id", rec.ID))
	return rec, nil
}

// ListByOwner pages through owner's records.
func (s *Shortener) ListByOwner(ctx context.Context, owner string, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	items, total, err := s.store.ListByOwner(ctx, owner, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// Stats reports table-wide counters.
func (s *Shortener) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, s.now())
}

// Sweep hard-deletes rows that expired or were soft-deleted more than the
// retention period ago, freeing their aliases for reuse.
func (s *Shortener) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	var total int64
	for {
		n, err := s.store.PurgeStale(ctx, cutoff, sweepBatch)
		total += n
		if err != nil {
			return total, err
		}
		if n < sweepBatch {
			return total, nil
		}
	}
}

// Wait drains pending click increments.
func (s *Shortener) Wait() {
	s.resolver.Wait()
}

// NormalizeURL trims raw and requires an absolute http(s) URL with a host.
// The trimmed input is returned as is so resolution hands back exactly what was submitted.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if len(raw) > maxURLLength {
		return "", &ValidationError{Field: "url", Reason: fmt.Sprintf("longer than %d bytes", maxURLLength)}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "url", Reason: "unparsable"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return "", &ValidationError{Field: "url", Reason: "missing host"}
	}
	return raw, nil
}

// ValidateAlias checks a caller-supplied alias.
func ValidateAlias(alias string) error {
	if l := len(alias); l < minAliasLength || l > maxAliasLength {
		return &ValidationError{Field: "alias", Reason: fmt.Sprintf("length must be %d-%d", minAliasLength, maxAliasLength)}
	}
	if !aliasRe.MatchString(alias) {
		return &ValidationError{Field: "alias", Reason: "only letters, digits, '-' and '_' are allowed"}
	}
	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return &ValidationError{Field: "alias", Reason: "reserved"}
	}
	return nil
}

// IsNotFound reports whether err means the alias does not resolve.
func IsNotFound(err error) bool { return errors.Is(err, ErrRecordNotFound) }
