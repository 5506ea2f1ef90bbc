package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sotto-note/internal/event"
	"sotto-note/internal/llm"
	"sotto-note/internal/model"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
}

func newReflectionService(entries *mockJournalRepo, usage *mockUsageRepo, gen replyGenerator, bus event.Bus) *ReflectionService {
	svc := NewReflectionService(entries, usage, gen, 3, bus, nil)
	svc.now = fixedClock
	return svc
}

func TestReflectionService_Usage(t *testing.T) {
	ctx := context.Background()

	t.Run("limited user", func(t *testing.T) {
		usage := new(mockUsageRepo)
		usage.On("Count", mock.Anything, "u1", fixedClock()).Return(2, nil)
		svc := newReflectionService(new(mockJournalRepo), usage, nil, nil)

		info, err := svc.Usage(ctx, "u1", false)

		require.NoError(t, err)
		assert.Equal(t, 2, info.Used)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 1, info.Remaining)
		assert.False(t, info.Unlimited)
		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), info.ResetsAt)
	})

	t.Run("over the limit never goes negative", func(t *testing.T) {
		usage := new(mockUsageRepo)
		usage.On("Count", mock.Anything, "u1", fixedClock()).Return(5, nil)
		svc := newReflectionService(new(mockJournalRepo), usage, nil, nil)

		info, err := svc.Usage(ctx, "u1", false)

		require.NoError(t, err)
		assert.Zero(t, info.Remaining)
	})

	t.Run("admin is unlimited", func(t *testing.T) {
		usage := new(mockUsageRepo)
		usage.On("Count", mock.Anything, "u1", fixedClock()).Return(7, nil)
		svc := newReflectionService(new(mockJournalRepo), usage, nil, nil)

		info, err := svc.Usage(ctx, "u1", true)

		require.NoError(t, err)
		assert.True(t, info.Unlimited)
		assert.Equal(t, 7, info.Used)
	})
}

func TestReflectionService_Reflect(t *testing.T) {
	ctx := context.Background()
	entry := model.JournalEntry{ID: "e1", UserID: "u1", Content: "long day", Mood: model.MoodAnxious}
	reply := "That sounds tiring. What helped, even a little?"

	t.Run("success reserves quota, stores the reply and publishes", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		bus := event.NewBus()
		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		withReply := entry
		withReply.AIReply = &reply
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil)
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 3).Return(1, nil)
		gen.On("Reflect", mock.Anything, entry).Return(reply, nil)
		entries.On("SetAIReply", mock.Anything, "u1", "e1", reply).Return(withReply, nil)
		svc := newReflectionService(entries, usage, gen, bus)

		got, err := svc.Reflect(ctx, "u1", "e1", false)

		require.NoError(t, err)
		require.NotNil(t, got.AIReply)
		assert.Equal(t, reply, *got.AIReply)
		assert.Equal(t, event.TypeAIUsageChanged, (<-events).Type)
		assert.Equal(t, event.TypeReflectionReady, (<-events).Type)
		entries.AssertExpectations(t)
		usage.AssertExpectations(t)
		gen.AssertExpectations(t)
	})

	t.Run("existing reply costs nothing", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		withReply := entry
		withReply.AIReply = &reply
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(withReply, nil)
		svc := newReflectionService(entries, usage, gen, nil)

		got, err := svc.Reflect(ctx, "u1", "e1", false)

		require.NoError(t, err)
		assert.Equal(t, &reply, got.AIReply)
		usage.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		gen.AssertNotCalled(t, "Reflect", mock.Anything, mock.Anything)
	})

	t.Run("losing a concurrent reflection keeps the first reply and refunds", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)

		first := "Someone else got here first."
		answered := entry
		answered.AIReply = &first
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil).Once()
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(answered, nil).Once()
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 3).Return(2, nil)
		usage.On("Release", mock.Anything, "u1", fixedClock()).Return(nil)
		gen.On("Reflect", mock.Anything, entry).Return(reply, nil)
		entries.On("SetAIReply", mock.Anything, "u1", "e1", reply).Return(model.JournalEntry{}, model.ErrEntryNotFound)
		svc := newReflectionService(entries, usage, gen, nil)

		got, err := svc.Reflect(ctx, "u1", "e1", false)

		require.NoError(t, err)
		require.NotNil(t, got.AIReply)
		assert.Equal(t, first, *got.AIReply)
		usage.AssertExpectations(t)
		entries.AssertExpectations(t)
	})

	t.Run("entry deleted mid-reflection refunds and reports not found", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil).Once()
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(model.JournalEntry{}, model.ErrEntryNotFound).Once()
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 3).Return(1, nil)
		usage.On("Release", mock.Anything, "u1", fixedClock()).Return(nil)
		gen.On("Reflect", mock.Anything, entry).Return(reply, nil)
		entries.On("SetAIReply", mock.Anything, "u1", "e1", reply).Return(model.JournalEntry{}, model.ErrEntryNotFound)
		svc := newReflectionService(entries, usage, gen, nil)

		_, err := svc.Reflect(ctx, "u1", "e1", false)

		assert.ErrorIs(t, err, model.ErrEntryNotFound)
		usage.AssertExpectations(t)
	})

	t.Run("quota exceeded is 429", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil)
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 3).Return(0, model.ErrAIQuotaExceeded)
		svc := newReflectionService(entries, usage, gen, nil)

		_, err := svc.Reflect(ctx, "u1", "e1", false)

		assert.ErrorIs(t, err, model.ErrAIQuotaExceeded)
		requireStatus(t, err, http.StatusTooManyRequests)
		gen.AssertNotCalled(t, "Reflect", mock.Anything, mock.Anything)
	})

	t.Run("unlimited users reserve without a limit", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil)
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 0).Return(12, nil)
		gen.On("Reflect", mock.Anything, entry).Return(reply, nil)
		entries.On("SetAIReply", mock.Anything, "u1", "e1", reply).Return(entry, nil)
		svc := newReflectionService(entries, usage, gen, nil)

		_, err := svc.Reflect(ctx, "u1", "e1", true)

		require.NoError(t, err)
		usage.AssertExpectations(t)
	})

	t.Run("generator failure releases the reservation", func(t *testing.T) {
		entries := new(mockJournalRepo)
		usage := new(mockUsageRepo)
		gen := new(mockGenerator)
		entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil)
		usage.On("Reserve", mock.Anything, "u1", fixedClock(), 3).Return(1, nil)
		usage.On("Release", mock.Anything, "u1", fixedClock()).Return(nil)
		gen.On("Reflect", mock.Anything, entry).Return("", errors.New("upstream 500"))
		svc := newReflectionService(entries, usage, gen, nil)

		_, err := svc.Reflect(ctx, "u1", "e1", false)

		assert.ErrorIs(t, err, model.ErrAIUnavailable)
		requireStatus(t, err, http.StatusBadGateway)
		usage.AssertExpectations(t)
		entries.AssertNotCalled(t, "SetAIReply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no generator configured", func(t *testing.T) {
		for name, gen := range map[string]replyGenerator{
			"nil":             nil,
			"missing api key": llm.New("", "", "", "", time.Second),
		} {
			t.Run(name, func(t *testing.T) {
				entries := new(mockJournalRepo)
				usage := new(mockUsageRepo)
				entries.On("FindByID", mock.Anything, "u1", "e1").Return(entry, nil)
				svc := newReflectionService(entries, usage, gen, nil)

				_, err := svc.Reflect(ctx, "u1", "e1", false)

				assert.ErrorIs(t, err, model.ErrAIUnavailable)
				requireStatus(t, err, http.StatusServiceUnavailable)
				usage.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		entries := new(mockJournalRepo)
		entries.On("FindByID", mock.Anything, "u1", "nope").Return(model.JournalEntry{}, model.ErrEntryNotFound)
		svc := newReflectionService(entries, new(mockUsageRepo), new(mockGenerator), nil)

		_, err := svc.Reflect(ctx, "u1", "nope", false)

		assert.ErrorIs(t, err, model.ErrEntryNotFound)
	})
}
