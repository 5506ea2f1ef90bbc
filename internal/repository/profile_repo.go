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

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `user_id, name, role, created_at, updated_at`

func scanProfile(row pgx.Row) (model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.UserID, &p.Name, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// FindByUserID returns model.ErrProfileNotFound when no row exists.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (model.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("find profile by user id: %w", err)
	}
	return p, nil
}

// Insert returns model.ErrProfileExists when another request created the
// profile first.
func (r *ProfileRepository) Insert(ctx context.Context, p model.Profile) (model.Profile, error) {
	created, err := scanProfile(r.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+profileColumns,
		p.UserID, p.Name, p.Role, p.CreatedAt, p.UpdatedAt))

	if isUniqueViolation(err) {
		return model.Profile{}, model.ErrProfileExists
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return created, nil
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, userID string, role string) (model.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`UPDATE profiles SET role = $2, updated_at = $3 WHERE user_id = $1
		 RETURNING `+profileColumns,
		userID, role, time.Now().UTC()))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("update profile role: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) List(ctx context.Context, page int, limit int) ([]model.Profile, model.Meta, error) {
	page, limit = normalizePage(page, limit)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at, user_id LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, pageMeta(page, limit, total), nil
}

func normalizePage(page int, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func pageMeta(page int, limit int, total int) model.Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return model.Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
