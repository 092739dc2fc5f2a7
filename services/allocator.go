package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/aishort/models"
)

const (
	DefaultMaxAttempts      = 8
	DefaultAllocationBudget = 10 * time.Second
)

// AllocatorOptions bound the allocation loop. Zero values select the defaults.
type AllocatorOptions struct {
	MaxAttempts int
	Budget      time.Duration
	TTL         time.Duration
	Now         func() time.Time
}

// Allocator turns candidates into persisted records with unique aliases.
//
// The exists check only filters obvious collisions; the store's unique
// constraint is the authority, so two processes racing on one candidate
// cannot both succeed and the loser simply draws again.
type Allocator struct {
	store       RecordStore
	candidates  CandidateSource
	maxAttempts int
	budget      time.Duration
	ttl         time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewAllocator creates an Allocator over store drawing candidates from source.
func NewAllocator(store RecordStore, source CandidateSource, opts AllocatorOptions, logger *zap.Logger) *Allocator {
	a := &Allocator{
		store:       store,
		candidates:  source,
		maxAttempts: opts.MaxAttempts,
		budget:      opts.Budget,
		ttl:         opts.TTL,
		now:         opts.Now,
		logger:      logger,
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = DefaultMaxAttempts
	}
	if a.budget <= 0 {
		a.budget = DefaultAllocationBudget
	}
	if a.ttl <= 0 {
		a.ttl = models.DefaultTTL
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Allocate synthesizes candidates until one is persisted for targetURL.
// It fails with ErrAllocationExhausted once the attempt cap or the wall-clock
// budget is spent; store failures propagate unchanged.
func (a *Allocator) Allocate(ctx context.Context, targetURL string, ownerID *string) (*models.URLRecord, error) {
	bctx, cancel := context.WithTimeout(ctx, a.budget)
	defer cancel()

	attempt := 0
	for attempt < a.maxAttempts {
		if bctx.Err() != nil {
			break
		}
		attempt++

		candidate, err := a.candidates.Synthesize(bctx, targetURL)
		if err != nil {
			return nil, fmt.Errorf("allocate: synthesize: %w", err)
		}

		rec, err := a.place(bctx, targetURL, candidate, ownerID)
		if err == nil {
			a.logger.Info("alias allocated",
				zap.String("alias", rec.Alias),
				zap.Uint("id", rec.ID),
				zap.Int("attempts", attempt),
			)
			return rec, nil
		}
		if errors.Is(err, ErrAliasConflict) {
			a.logger.Debug("alias candidate taken, drawing again",
				zap.String("candidate", candidate),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if budgetSpent(ctx, bctx, err) {
			break
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.logger.Error("alias allocation exhausted",
		zap.String("target_url", targetURL),
		zap.Int("attempts", attempt),
		zap.Duration("budget", a.budget),
	)
	return nil, fmt.Errorf("%w: %d attempts within %s", ErrAllocationExhausted, attempt, a.budget)
}

// Claim persists a caller-chosen alias in a single attempt.
// A taken alias is reported as ErrAliasConflict rather than retried.
func (a *Allocator) Claim(ctx context.Context, targetURL, alias string, ownerID *string) (*models.URLRecord, error) {
	rec, err := a.place(ctx, targetURL, alias, ownerID)
	if err != nil {
		return nil, err
	}
	a.logger.Info("alias claimed", zap.String("alias", rec.Alias), zap.Uint("id", rec.ID))
	return rec, nil
}

// place runs the exists check followed by the authoritative insert.
func (a *Allocator) place(ctx context.Context, targetURL, alias string, ownerID *string) (*models.URLRecord, error) {
	taken, err := a.store.Exists(ctx, alias)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrAliasConflict
	}

	rec := a.newRecord(targetURL, alias, ownerID)
	outcome, err := a.store.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if outcome == Conflict {
		return nil, ErrAliasConflict
	}
	return rec, nil
}

func (a *Allocator) newRecord(targetURL, alias string, ownerID *string) *models.URLRecord {
	now := a.now().UTC()
	return &models.URLRecord{
		OwnerID:   ownerID,
		TargetURL: targetURL,
		Alias:     alias,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}
}

// budgetSpent reports whether err stems from the allocation budget
// expiring rather than from the caller's own context.
func budgetSpent(parent, budget context.Context, err error) bool {
	return parent.Err() == nil && budget.Err() != nil && errors.Is(err, context.DeadlineExceeded)
}
