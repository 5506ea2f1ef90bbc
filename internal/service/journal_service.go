package service

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"sotto-note/internal/event"
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

const maxEntryLength = 20000

type JournalService struct {
	repo journalRepository
	bus  event.Bus
	now  func() time.Time
}

func NewJournalService(repo journalRepository, bus event.Bus) *JournalService {
	return &JournalService{repo: repo, bus: bus, now: time.Now}
}

func (s *JournalService) Create(ctx context.Context, userID string, req model.CreateEntryRequest) (model.JournalEntry, error) {
	content, err := normalizeContent(req.Content)
	if err != nil {
		return model.JournalEntry{}, err
	}

	mood := req.Mood
	if mood == "" {
		mood = model.MoodNeutral
	}
	if !mood.Valid() {
		return model.JournalEntry{}, invalidMood(mood)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, model.JournalEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Mood:      mood,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return model.JournalEntry{}, err
	}

	event.Publish(s.bus, event.TypeEntryCreated, userID, created)
	return created, nil
}

func (s *JournalService) Get(ctx context.Context, userID string, id string) (model.JournalEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.JournalEntry{}, apierror.NotFound("entry not found", id)
	}
	return s.repo.FindByID(ctx, userID, id)
}

func (s *JournalService) List(ctx context.Context, userID string, query model.EntryQuery) ([]model.JournalEntry, model.Meta, error) {
	if query.Mood != "" && !query.Mood.Valid() {
		return nil, model.Meta{}, invalidMood(query.Mood)
	}
	return s.repo.List(ctx, userID, query)
}

func (s *JournalService) Update(ctx context.Context, userID string, id string, req model.UpdateEntryRequest) (model.JournalEntry, error) {
	if req.Content == nil && req.Mood == nil {
		return model.JournalEntry{}, apierror.BadRequest("nothing to update", "")
	}

	entry, err := s.Get(ctx, userID, id)
	if err != nil {
		return model.JournalEntry{}, err
	}

	if req.Content != nil {
		content, err := normalizeContent(*req.Content)
		if err != nil {
			return model.JournalEntry{}, err
		}
		entry.Content = content
	}
	if req.Mood != nil {
		if !req.Mood.Valid() {
			return model.JournalEntry{}, invalidMood(*req.Mood)
		}
		entry.Mood = *req.Mood
	}
	entry.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, entry)
	if err != nil {
		return model.JournalEntry{}, err
	}

	event.Publish(s.bus, event.TypeEntryUpdated, userID, updated)
	return updated, nil
}

func (s *JournalService) Delete(ctx context.Context, userID string, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apierror.NotFound("entry not found", id)
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	event.Publish(s.bus, event.TypeEntryDeleted, userID, map[string]string{"id": id})
	return nil
}

func normalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", apierror.BadRequest("content is required", "")
	}
	if utf8.RuneCountInString(content) > maxEntryLength {
		return "", apierror.BadRequest("content is too long", "")
	}
	return content, nil
}

func invalidMood(m model.Mood) error {
	err := apierror.Wrap(model.ErrInvalidMood, "BAD_REQUEST", "invalid mood", http.StatusBadRequest)
	err.Details = string(m)
	return err
}
