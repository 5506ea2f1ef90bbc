package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sotto-note/internal/event"
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

func TestProfileService_Ensure(t *testing.T) {
	ctx := context.Background()
	user := model.AuthUser{ID: "5b0c4a52-6c4e-4a8e-9d0b-3b1f7c6d2e10", Email: "grace@example.com"}

	t.Run("existing profile is returned as is", func(t *testing.T) {
		repo := new(mockProfileRepo)
		existing := model.Profile{UserID: user.ID, Name: "Grace", Role: model.RoleAdmin}
		repo.On("FindByUserID", mock.Anything, user.ID).Return(existing, nil)
		svc := NewProfileService(repo, nil, nil, nil)

		p, err := svc.Ensure(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, existing, p)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("missing profile is created as free", func(t *testing.T) {
		repo := new(mockProfileRepo)
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		repo.On("FindByUserID", mock.Anything, user.ID).Return(model.Profile{}, model.ErrProfileNotFound)
		repo.On("Insert", mock.Anything, mock.MatchedBy(func(p model.Profile) bool {
			return p.UserID == user.ID && p.Name == "grace" && p.Role == model.RoleFree && !p.CreatedAt.IsZero()
		})).Return(model.Profile{UserID: user.ID, Name: "grace", Role: model.RoleFree}, nil)
		svc := NewProfileService(repo, nil, bus, nil)

		p, err := svc.Ensure(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, model.RoleFree, p.Role)
		assert.Equal(t, event.TypeProfileCreated, (<-events).Type)
		repo.AssertExpectations(t)
	})

	t.Run("insert race re-reads the winner", func(t *testing.T) {
		repo := new(mockProfileRepo)
		winner := model.Profile{UserID: user.ID, Name: "Grace H", Role: model.RoleFree}
		repo.On("FindByUserID", mock.Anything, user.ID).Return(model.Profile{}, model.ErrProfileNotFound).Once()
		repo.On("Insert", mock.Anything, mock.Anything).Return(model.Profile{}, model.ErrProfileExists).Once()
		repo.On("FindByUserID", mock.Anything, user.ID).Return(winner, nil).Once()
		svc := NewProfileService(repo, nil, nil, nil)

		p, err := svc.Ensure(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, winner, p)
		repo.AssertExpectations(t)
	})

	t.Run("other lookup errors propagate", func(t *testing.T) {
		repo := new(mockProfileRepo)
		boom := errors.New("connection reset")
		repo.On("FindByUserID", mock.Anything, user.ID).Return(model.Profile{}, boom)
		svc := NewProfileService(repo, nil, nil, nil)

		_, err := svc.Ensure(ctx, user)

		assert.ErrorIs(t, err, boom)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("concurrent calls converge on one row", func(t *testing.T) {
		repo := newMemProfileRepo()
		svc := NewProfileService(repo, nil, nil, nil)

		const workers = 16
		results := make([]model.Profile, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = svc.Ensure(ctx, user)
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.Equal(t, user.ID, results[i].UserID)
		}
		assert.Equal(t, 1, repo.inserts)
		assert.Len(t, repo.rows, 1)
	})
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user model.AuthUser
		want string
	}{
		{"metadata name", model.AuthUser{Email: "x@y.z", Metadata: map[string]any{"name": " Ada "}}, "Ada"},
		{"full name fallback", model.AuthUser{Email: "x@y.z", Metadata: map[string]any{"full_name": "Ada Lovelace"}}, "Ada Lovelace"},
		{"non-string metadata ignored", model.AuthUser{Email: "ada@y.z", Metadata: map[string]any{"name": 42}}, "ada"},
		{"email local part", model.AuthUser{Email: "ada.l@example.com"}, "ada.l"},
		{"nothing usable", model.AuthUser{}, "Friend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.user))
		})
	}
}

func TestProfileService_IsAdmin(t *testing.T) {
	svc := NewProfileService(newMemProfileRepo(), []string{"allow-listed"}, nil, nil)

	assert.True(t, svc.IsAdmin(model.Profile{UserID: "someone", Role: model.RoleAdmin}))
	assert.True(t, svc.IsAdmin(model.Profile{UserID: "allow-listed", Role: model.RoleFree}))
	assert.False(t, svc.IsAdmin(model.Profile{UserID: "someone", Role: model.RoleFree}))
}

func TestProfileService_SetRole(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes and publishes", func(t *testing.T) {
		repo := newMemProfileRepo()
		repo.rows["u1"] = model.Profile{UserID: "u1", Role: model.RoleFree}
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()
		svc := NewProfileService(repo, nil, bus, nil)

		p, err := svc.SetRole(ctx, "admin-1", "u1", " ADMIN ")

		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, p.Role)
		ev := <-events
		assert.Equal(t, event.TypeProfileUpdated, ev.Type)
		assert.Equal(t, "u1", ev.UserID)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		svc := NewProfileService(newMemProfileRepo(), nil, nil, nil)

		_, err := svc.SetRole(ctx, "admin-1", "u1", "owner")

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	})

	t.Run("admins cannot demote themselves", func(t *testing.T) {
		svc := NewProfileService(newMemProfileRepo(), nil, nil, nil)

		_, err := svc.SetRole(ctx, "admin-1", "admin-1", model.RoleFree)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		svc := NewProfileService(newMemProfileRepo(), nil, nil, nil)

		_, err := svc.SetRole(ctx, "admin-1", "ghost", model.RoleAdmin)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	})
}
