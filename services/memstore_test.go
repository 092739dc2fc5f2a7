package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/aishort/models"
)

// memStore is an in-memory RecordStore whose map key plays the unique index.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]*models.URLRecord
	nextID uint

	// afterExists runs between the exists check and the insert of a candidate,
	// letting tests slip a competing writer into the gap.
	afterExists func(alias string)
	insertErr   error
	clickErr    error
	clickCalls  int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*models.URLRecord{}}
}

func (m *memStore) Exists(_ context.Context, alias string) (bool, error) {
	m.mu.Lock()
	_, ok := m.rows[alias]
	hook := m.afterExists
	m.mu.Unlock()
	if hook != nil {
		hook(alias)
	}
	return ok, nil
}

func (m *memStore) Insert(ctx context.Context, rec *models.URLRecord) (InsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return InsertFailed, Unavailable("mem.Insert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return InsertFailed, Unavailable("mem.Insert", m.insertErr)
	}
	if _, ok := m.rows[rec.Alias]; ok {
		return Conflict, nil
	}
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.rows[rec.Alias] = &cp
	return Inserted, nil
}

// put stores rec directly, bypassing hooks.
func (m *memStore) put(rec models.URLRecord) *models.URLRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.rows[rec.Alias] = &rec
	cp := rec
	return &cp
}

func (m *memStore) FindActive(_ context.Context, alias string, now time.Time) (*models.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[alias]
	if !ok || !r.IsActive(now) {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Find(_ context.Context, alias string) (*models.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[alias]
	if !ok || r.DeletedAt.Valid {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) IncrementClicks(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clickCalls++
	if m.clickErr != nil {
		return m.clickErr
	}
	for _, r := range m.rows {
		if r.ID == id {
			r.ClickCount++
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) SoftDelete(_ context.Context, alias string) (*models.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[alias]
	if !ok || r.DeletedAt.Valid {
		return nil, ErrRecordNotFound
	}
	r.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	cp := *r
	return &cp, nil
}

func (m *memStore) HardDelete(_ context.Context, alias string) (*models.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[alias]
	if !ok {
		return nil, ErrRecordNotFound
	}
	delete(m.rows, alias)
	return r, nil
}

func (m *memStore) ListByOwner(_ context.Context, owner string, offset, limit int) ([]models.URLRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.URLRecord
	for _, r := range m.rows {
		if r.Owned(owner) && !r.DeletedAt.Valid {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) PurgeStale(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for alias, r := range m.rows {
		if int(n) >= limit {
			break
		}
		if !r.ExpiresAt.After(cutoff) || (r.DeletedAt.Valid && !r.DeletedAt.Time.After(cutoff)) {
			delete(m.rows, alias)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, r := range m.rows {
		if r.DeletedAt.Valid {
			continue
		}
		st.Total++
		st.TotalClicks += r.ClickCount
		if r.ExpiresAt.After(now) {
			st.Active++
		}
	}
	return st, nil
}

func (m *memStore) clicks(alias string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[alias]; ok {
		return r.ClickCount
	}
	return -1
}

// scriptedCandidates hands out a fixed sequence of candidates, then repeats the last one.
type scriptedCandidates struct {
	mu    sync.Mutex
	seq   []string
	calls int
}

func (s *scriptedCandidates) Synthesize(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.seq) {
		i = len(s.seq) - 1
	}
	s.calls++
	return s.seq[i], nil
}

var errBoom = errors.New("boom")
