package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sotto-note/internal/event"
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.HTTPStatus)
}

func TestJournalService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults mood to neutral and publishes", func(t *testing.T) {
		repo := new(mockJournalRepo)
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		repo.On("Create", mock.Anything, mock.MatchedBy(func(e model.JournalEntry) bool {
			_, err := uuid.Parse(e.ID)
			return err == nil && e.UserID == "u1" && e.Content == "slept well" && e.Mood == model.MoodNeutral
		})).Return(model.JournalEntry{ID: "e1", UserID: "u1", Content: "slept well", Mood: model.MoodNeutral}, nil)
		svc := NewJournalService(repo, bus)

		entry, err := svc.Create(ctx, "u1", model.CreateEntryRequest{Content: "  slept well \n"})

		require.NoError(t, err)
		assert.Equal(t, model.MoodNeutral, entry.Mood)
		assert.Equal(t, event.TypeEntryCreated, (<-events).Type)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown mood", func(t *testing.T) {
		repo := new(mockJournalRepo)
		svc := NewJournalService(repo, nil)

		_, err := svc.Create(ctx, "u1", model.CreateEntryRequest{Content: "hi", Mood: "elated"})

		assert.ErrorIs(t, err, model.ErrInvalidMood)
		requireStatus(t, err, http.StatusBadRequest)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects blank and oversized content", func(t *testing.T) {
		svc := NewJournalService(new(mockJournalRepo), nil)

		_, err := svc.Create(ctx, "u1", model.CreateEntryRequest{Content: "   "})
		requireStatus(t, err, http.StatusBadRequest)

		_, err = svc.Create(ctx, "u1", model.CreateEntryRequest{Content: strings.Repeat("a", maxEntryLength+1)})
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func TestJournalService_Update(t *testing.T) {
	ctx := context.Background()
	id := uuid.NewString()

	t.Run("applies only provided fields", func(t *testing.T) {
		repo := new(mockJournalRepo)
		existing := model.JournalEntry{ID: id, UserID: "u1", Content: "old", Mood: model.MoodSad}
		repo.On("FindByID", mock.Anything, "u1", id).Return(existing, nil)
		repo.On("Update", mock.Anything, mock.MatchedBy(func(e model.JournalEntry) bool {
			return e.Content == "old" && e.Mood == model.MoodContent && !e.UpdatedAt.IsZero()
		})).Return(model.JournalEntry{ID: id, Content: "old", Mood: model.MoodContent}, nil)
		svc := NewJournalService(repo, nil)

		mood := model.MoodContent
		updated, err := svc.Update(ctx, "u1", id, model.UpdateEntryRequest{Mood: &mood})

		require.NoError(t, err)
		assert.Equal(t, model.MoodContent, updated.Mood)
		repo.AssertExpectations(t)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		svc := NewJournalService(new(mockJournalRepo), nil)

		_, err := svc.Update(ctx, "u1", id, model.UpdateEntryRequest{})
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("someone else's entry is not found", func(t *testing.T) {
		repo := new(mockJournalRepo)
		repo.On("FindByID", mock.Anything, "u2", id).Return(model.JournalEntry{}, model.ErrEntryNotFound)
		svc := NewJournalService(repo, nil)

		content := "mine now"
		_, err := svc.Update(ctx, "u2", id, model.UpdateEntryRequest{Content: &content})

		assert.ErrorIs(t, err, model.ErrEntryNotFound)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestJournalService_GetAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed id never reaches the repository", func(t *testing.T) {
		repo := new(mockJournalRepo)
		svc := NewJournalService(repo, nil)

		_, err := svc.Get(ctx, "u1", "not-a-uuid")
		requireStatus(t, err, http.StatusNotFound)

		err = svc.Delete(ctx, "u1", "not-a-uuid")
		requireStatus(t, err, http.StatusNotFound)

		repo.AssertExpectations(t)
	})

	t.Run("delete publishes", func(t *testing.T) {
		id := uuid.NewString()
		repo := new(mockJournalRepo)
		repo.On("Delete", mock.Anything, "u1", id).Return(nil)
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()
		svc := NewJournalService(repo, bus)

		require.NoError(t, svc.Delete(ctx, "u1", id))
		assert.Equal(t, event.TypeEntryDeleted, (<-events).Type)
	})

	t.Run("list validates the mood filter", func(t *testing.T) {
		svc := NewJournalService(new(mockJournalRepo), nil)

		_, _, err := svc.List(ctx, "u1", model.EntryQuery{Mood: "meh"})
		assert.ErrorIs(t, err, model.ErrInvalidMood)
	})
}
