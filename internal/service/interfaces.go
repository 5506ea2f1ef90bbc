package service

import (
	"context"
	"net/http"
	"time"

	"sotto-note/internal/model"
)

type credentialStore interface {
	Read(r *http.Request) *model.SessionRecord
	Write(rec model.SessionRecord) (*http.Cookie, error)
	Clear() *http.Cookie
}

type sessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.AuthSession, error)
}

type authProvider interface {
	sessionRefresher
	SignInWithPassword(ctx context.Context, email string, password string) (*model.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
}

type profileRepository interface {
	FindByUserID(ctx context.Context, userID string) (model.Profile, error)
	Insert(ctx context.Context, p model.Profile) (model.Profile, error)
	UpdateRole(ctx context.Context, userID string, role string) (model.Profile, error)
	List(ctx context.Context, page int, limit int) ([]model.Profile, model.Meta, error)
}

type profileEnsurer interface {
	Ensure(ctx context.Context, user model.AuthUser) (model.Profile, error)
}

type journalRepository interface {
	Create(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error)
	FindByID(ctx context.Context, userID string, id string) (model.JournalEntry, error)
	List(ctx context.Context, userID string, query model.EntryQuery) ([]model.JournalEntry, model.Meta, error)
	Update(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error)
	SetAIReply(ctx context.Context, userID string, id string, reply string) (model.JournalEntry, error)
	Delete(ctx context.Context, userID string, id string) error
}

type usageRepository interface {
	Count(ctx context.Context, userID string, day time.Time) (int, error)
	Reserve(ctx context.Context, userID string, day time.Time, limit int) (int, error)
	Release(ctx context.Context, userID string, day time.Time) error
}

type replyGenerator interface {
	Enabled() bool
	Reflect(ctx context.Context, entry model.JournalEntry) (string, error)
}
