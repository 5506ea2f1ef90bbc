//go:build integration

package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"sotto-note/internal/database"
	"sotto-note/internal/model"
)

// newTestDB uses TEST_DATABASE_URL when set and otherwise starts a throwaway
// Postgres container.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		url = startPostgres(t)
	}

	db, err := database.New(ctx, url, 4, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx), "schema setup must be repeatable")
	return db
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "sotto",
				"POSTGRES_PASSWORD": "sotto",
				"POSTGRES_DB":       "sotto",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://sotto:sotto@%s:%s/sotto?sslmode=disable", host, port.Port())
}

func TestProfileRepository_Postgres(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db.Pool)
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := repo.FindByUserID(ctx, userID)
	assert.ErrorIs(t, err, model.ErrProfileNotFound)

	now := time.Now().UTC()
	created, err := repo.Insert(ctx, model.Profile{UserID: userID, Name: "Ada", Role: model.RoleFree, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, userID, created.UserID)

	_, err = repo.Insert(ctx, model.Profile{UserID: userID, Name: "Ada again", Role: model.RoleFree, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, model.ErrProfileExists)

	updated, err := repo.UpdateRole(ctx, userID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)

	_, err = repo.UpdateRole(ctx, uuid.NewString(), model.RoleAdmin)
	assert.ErrorIs(t, err, model.ErrProfileNotFound)
}

func TestProfileRepository_ConcurrentInsertKeepsOneRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db.Pool)
	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now().UTC()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Insert(ctx, model.Profile{UserID: userID, Name: "Ada", Role: model.RoleFree, CreatedAt: now, UpdatedAt: now})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrProfileExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestJournalRepository_Postgres(t *testing.T) {
	db := newTestDB(t)
	repo := NewJournalRepository(db.Pool)
	ctx := context.Background()
	owner, stranger := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry, err := repo.Create(ctx, model.JournalEntry{
		ID: uuid.NewString(), UserID: owner, Content: "rainy walk", Mood: model.MoodContent,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Nil(t, entry.AIReply)

	_, err = repo.FindByID(ctx, stranger, entry.ID)
	assert.ErrorIs(t, err, model.ErrEntryNotFound)

	entries, meta, err := repo.List(ctx, owner, model.EntryQuery{Mood: model.MoodContent})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, meta.Total)

	entries, _, err = repo.List(ctx, owner, model.EntryQuery{Mood: model.MoodSad})
	require.NoError(t, err)
	assert.Empty(t, entries)

	withReply, err := repo.SetAIReply(ctx, owner, entry.ID, "Sounds restorative.")
	require.NoError(t, err)
	require.NotNil(t, withReply.AIReply)

	_, err = repo.SetAIReply(ctx, owner, entry.ID, "A second opinion.")
	assert.ErrorIs(t, err, model.ErrEntryNotFound)
	kept, err := repo.FindByID(ctx, owner, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.AIReply)
	assert.Equal(t, "Sounds restorative.", *kept.AIReply)

	assert.ErrorIs(t, repo.Delete(ctx, stranger, entry.ID), model.ErrEntryNotFound)
	require.NoError(t, repo.Delete(ctx, owner, entry.ID))
	assert.ErrorIs(t, repo.Delete(ctx, owner, entry.ID), model.ErrEntryNotFound)
}

func TestUsageRepository_Postgres(t *testing.T) {
	db := newTestDB(t)
	repo := NewUsageRepository(db.Pool)
	ctx := context.Background()
	userID := uuid.NewString()
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	n, err := repo.Count(ctx, userID, day)
	require.NoError(t, err)
	assert.Zero(t, n)

	for want := 1; want <= 2; want++ {
		n, err = repo.Reserve(ctx, userID, day, 2)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	_, err = repo.Reserve(ctx, userID, day, 2)
	assert.ErrorIs(t, err, model.ErrAIQuotaExceeded)

	require.NoError(t, repo.Release(ctx, userID, day))
	n, err = repo.Count(ctx, userID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.Reserve(ctx, userID, day.Add(time.Minute), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a new UTC day starts from zero")
}
