package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sotto-note/internal/model"
)

type JournalRepository struct {
	pool *pgxpool.Pool
}

func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

const entryColumns = `id, user_id, content, mood, ai_reply, created_at, updated_at`

func scanEntry(row pgx.Row) (model.JournalEntry, error) {
	var e model.JournalEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Content, &e.Mood, &e.AIReply, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *JournalRepository) Create(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	created, err := scanEntry(r.pool.QueryRow(ctx,
		`INSERT INTO journal_entries (id, user_id, content, mood, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+entryColumns,
		e.ID, e.UserID, e.Content, e.Mood, e.CreatedAt, e.UpdatedAt))
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("create journal entry: %w", err)
	}
	return created, nil
}

// FindByID only returns entries owned by userID.
func (r *JournalRepository) FindByID(ctx context.Context, userID string, id string) (model.JournalEntry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.JournalEntry{}, model.ErrEntryNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("find journal entry: %w", err)
	}
	return e, nil
}

func (r *JournalRepository) List(ctx context.Context, userID string, query model.EntryQuery) ([]model.JournalEntry, model.Meta, error) {
	page, limit := normalizePage(query.Page, query.Limit)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE user_id = $1 AND ($2 = '' OR mood = $2)`,
		userID, string(query.Mood)).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count journal entries: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM journal_entries
		 WHERE user_id = $1 AND ($2 = '' OR mood = $2)
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`,
		userID, string(query.Mood), limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.JournalEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, pageMeta(page, limit, total), nil
}

func (r *JournalRepository) Update(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	updated, err := scanEntry(r.pool.QueryRow(ctx,
		`UPDATE journal_entries SET content = $3, mood = $4, updated_at = $5
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+entryColumns,
		e.ID, e.UserID, e.Content, e.Mood, e.UpdatedAt))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.JournalEntry{}, model.ErrEntryNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("update journal entry: %w", err)
	}
	return updated, nil
}

// SetAIReply stores reply only if the entry has none yet. An entry that is
// missing or already answered reports model.ErrEntryNotFound.
func (r *JournalRepository) SetAIReply(ctx context.Context, userID string, id string, reply string) (model.JournalEntry, error) {
	updated, err := scanEntry(r.pool.QueryRow(ctx,
		`UPDATE journal_entries SET ai_reply = $3, updated_at = $4
		 WHERE id = $1 AND user_id = $2 AND ai_reply IS NULL
		 RETURNING `+entryColumns,
		id, userID, reply, time.Now().UTC()))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.JournalEntry{}, model.ErrEntryNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("set ai reply: %w", err)
	}
	return updated, nil
}

func (r *JournalRepository) Delete(ctx context.Context, userID string, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEntryNotFound
	}
	return nil
}
