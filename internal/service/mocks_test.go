package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"sotto-note/internal/model"
)

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (model.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *mockProfileRepo) Insert(ctx context.Context, p model.Profile) (model.Profile, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, userID string, role string) (model.Profile, error) {
	args := m.Called(ctx, userID, role)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *mockProfileRepo) List(ctx context.Context, page int, limit int) ([]model.Profile, model.Meta, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.Profile), args.Get(1).(model.Meta), args.Error(2)
}

// memProfileRepo enforces the unique user_id constraint like the real table.
type memProfileRepo struct {
	mu      sync.Mutex
	rows    map[string]model.Profile
	inserts int
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{rows: map[string]model.Profile{}}
}

func (r *memProfileRepo) FindByUserID(_ context.Context, userID string) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[userID]
	if !ok {
		return model.Profile{}, model.ErrProfileNotFound
	}
	return p, nil
}

func (r *memProfileRepo) Insert(_ context.Context, p model.Profile) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.UserID]; ok {
		return model.Profile{}, model.ErrProfileExists
	}
	r.rows[p.UserID] = p
	r.inserts++
	return p, nil
}

func (r *memProfileRepo) UpdateRole(_ context.Context, userID string, role string) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[userID]
	if !ok {
		return model.Profile{}, model.ErrProfileNotFound
	}
	p.Role = role
	r.rows[userID] = p
	return p, nil
}

func (r *memProfileRepo) List(_ context.Context, page int, limit int) ([]model.Profile, model.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Profile, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, p)
	}
	return out, model.Meta{Page: page, Limit: limit, Total: len(out), TotalPages: 1}, nil
}

type mockEnsurer struct {
	mock.Mock
}

func (m *mockEnsurer) Ensure(ctx context.Context, user model.AuthUser) (model.Profile, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.Profile), args.Error(1)
}

type mockJournalRepo struct {
	mock.Mock
}

func (m *mockJournalRepo) Create(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(model.JournalEntry), args.Error(1)
}

func (m *mockJournalRepo) FindByID(ctx context.Context, userID string, id string) (model.JournalEntry, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.JournalEntry), args.Error(1)
}

func (m *mockJournalRepo) List(ctx context.Context, userID string, query model.EntryQuery) ([]model.JournalEntry, model.Meta, error) {
	args := m.Called(ctx, userID, query)
	return args.Get(0).([]model.JournalEntry), args.Get(1).(model.Meta), args.Error(2)
}

func (m *mockJournalRepo) Update(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(model.JournalEntry), args.Error(1)
}

func (m *mockJournalRepo) SetAIReply(ctx context.Context, userID string, id string, reply string) (model.JournalEntry, error) {
	args := m.Called(ctx, userID, id, reply)
	return args.Get(0).(model.JournalEntry), args.Error(1)
}

func (m *mockJournalRepo) Delete(ctx context.Context, userID string, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type mockUsageRepo struct {
	mock.Mock
}

func (m *mockUsageRepo) Count(ctx context.Context, userID string, day time.Time) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageRepo) Reserve(ctx context.Context, userID string, day time.Time, limit int) (int, error) {
	args := m.Called(ctx, userID, day, limit)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageRepo) Release(ctx context.Context, userID string, day time.Time) error {
	args := m.Called(ctx, userID, day)
	return args.Error(0)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Enabled() bool {
	return true
}

func (m *mockGenerator) Reflect(ctx context.Context, entry model.JournalEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}
