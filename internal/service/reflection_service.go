package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sotto-note/internal/event"
	"sotto-note/internal/metrics"
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

// ReflectionService generates AI replies to journal entries under a daily
// per-user quota. Admins are unlimited.
type ReflectionService struct {
	entries    journalRepository
	usage      usageRepository
	generator  replyGenerator
	dailyLimit int
	bus        event.Bus
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewReflectionService accepts a nil or disabled generator, in which case
// every reflection request fails with model.ErrAIUnavailable.
func NewReflectionService(entries journalRepository, usage usageRepository, generator replyGenerator, dailyLimit int, bus event.Bus, m *metrics.Metrics) *ReflectionService {
	return &ReflectionService{
		entries:    entries,
		usage:      usage,
		generator:  generator,
		dailyLimit: dailyLimit,
		bus:        bus,
		metrics:    m,
		now:        time.Now,
	}
}

func (s *ReflectionService) Usage(ctx context.Context, userID string, unlimited bool) (model.AIUsageInfo, error) {
	now := s.now().UTC()
	used, err := s.usage.Count(ctx, userID, now)
	if err != nil {
		return model.AIUsageInfo{}, err
	}
	return s.usageInfo(used, unlimited, now), nil
}

func (s *ReflectionService) usageInfo(used int, unlimited bool, now time.Time) model.AIUsageInfo {
	info := model.AIUsageInfo{
		Used:      used,
		Limit:     s.dailyLimit,
		Unlimited: unlimited || s.dailyLimit == 0,
		ResetsAt:  nextMidnight(now),
	}
	if !info.Unlimited {
		info.Remaining = max(s.dailyLimit-used, 0)
	}
	return info
}

// Reflect returns the entry with its AI reply. An entry that already has a
// reply is returned unchanged and costs nothing.
func (s *ReflectionService) Reflect(ctx context.Context, userID string, entryID string, unlimited bool) (model.JournalEntry, error) {
	entry, err := s.entries.FindByID(ctx, userID, entryID)
	if err != nil {
		return model.JournalEntry{}, err
	}
	if entry.AIReply != nil {
		return entry, nil
	}

	if s.generator == nil || !s.generator.Enabled() {
		s.metrics.Reflection("unavailable")
		return model.JournalEntry{}, apierror.Wrap(model.ErrAIUnavailable, "AI_UNAVAILABLE", "AI reflections are not configured", http.StatusServiceUnavailable)
	}

	now := s.now().UTC()
	limit := s.dailyLimit
	if unlimited {
		limit = 0
	}

	if _, err := s.usage.Reserve(ctx, userID, now, limit); err != nil {
		if errors.Is(err, model.ErrAIQuotaExceeded) {
			s.metrics.Reflection("quota_exceeded")
			return model.JournalEntry{}, apierror.Wrap(err, "AI_QUOTA_EXCEEDED", "Daily AI reflection limit reached", http.StatusTooManyRequests)
		}
		return model.JournalEntry{}, err
	}

	reply, err := s.generator.Reflect(ctx, entry)
	if err != nil {
		s.release(userID, now)
		s.metrics.Reflection("error")
		slog.Error("ai reflection failed", "user_id", userID, "entry_id", entryID, "error", err)
		return model.JournalEntry{}, apierror.Wrap(model.ErrAIUnavailable, "AI_UNAVAILABLE", "Could not generate a reflection right now", http.StatusBadGateway)
	}

	updated, err := s.entries.SetAIReply(ctx, userID, entryID, reply)
	if errors.Is(err, model.ErrEntryNotFound) {
		// Another request answered first or the entry is gone.
		s.release(userID, now)
		current, findErr := s.entries.FindByID(ctx, userID, entryID)
		if findErr != nil {
			return model.JournalEntry{}, findErr
		}
		if current.AIReply == nil {
			return model.JournalEntry{}, fmt.Errorf("store ai reply: %w", err)
		}
		s.metrics.Reflection("duplicate")
		return current, nil
	}
	if err != nil {
		s.release(userID, now)
		return model.JournalEntry{}, fmt.Errorf("store ai reply: %w", err)
	}

	s.metrics.Reflection("ok")
	event.Publish(s.bus, event.TypeAIUsageChanged, userID, nil)
	event.Publish(s.bus, event.TypeReflectionReady, userID, updated)

	return updated, nil
}

func (s *ReflectionService) release(userID string, day time.Time) {
	// The request context may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.usage.Release(ctx, userID, day); err != nil {
		slog.Warn("failed to release ai usage", "user_id", userID, "error", err)
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
