// Package cache keeps a short-lived, per-user view of identity, profile and
// AI usage so protected pages don't hit the database on every request.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sotto-note/internal/event"
	"sotto-note/internal/model"
)

type profileSource interface {
	Ensure(ctx context.Context, user model.AuthUser) (model.Profile, error)
	IsAdmin(p model.Profile) bool
}

type usageSource interface {
	Usage(ctx context.Context, userID string, unlimited bool) (model.AIUsageInfo, error)
}

type entry struct {
	// generation changes on every invalidation so a load that started
	// before it cannot store a stale value.
	generation uint64

	user      *model.AuthUser
	profile   *model.Profile
	profileAt time.Time
	usage     *model.AIUsageInfo
	usageAt   time.Time
	touched   time.Time
}

// loadTimeout bounds a shared load once it no longer follows the request
// that started it.
const loadTimeout = 10 * time.Second

type UserState struct {
	profiles profileSource
	usage    usageSource
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
	group   singleflight.Group
}

func NewUserState(profiles profileSource, usage usageSource, ttl time.Duration) *UserState {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &UserState{
		profiles: profiles,
		usage:    usage,
		ttl:      ttl,
		now:      time.Now,
		entries:  map[string]*entry{},
	}
}

func (c *UserState) get(userID string) *entry {
	e, ok := c.entries[userID]
	if !ok {
		e = &entry{}
		c.bump(e)
		c.entries[userID] = e
	}
	e.touched = c.now()
	return e
}

func (c *UserState) bump(e *entry) {
	c.seq++
	e.generation = c.seq
}

func (c *UserState) fresh(at time.Time) bool {
	return !at.IsZero() && c.now().Sub(at) < c.ttl
}

// RememberUser records the identity resolved for the current request.
func (c *UserState) RememberUser(user model.AuthUser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(user.ID).user = &user
}

func (c *UserState) User(userID string) (model.AuthUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || e.user == nil {
		return model.AuthUser{}, false
	}
	return *e.user, true
}

// Profile returns the cached profile, ensuring it exists on a miss.
func (c *UserState) Profile(ctx context.Context, user model.AuthUser) (model.Profile, error) {
	c.mu.Lock()
	e := c.get(user.ID)
	if e.profile != nil && c.fresh(e.profileAt) {
		p := *e.profile
		c.mu.Unlock()
		return p, nil
	}
	gen := e.generation
	c.mu.Unlock()

	v, err := c.load(ctx, "profile:"+user.ID, func(ctx context.Context) (any, error) {
		return c.profiles.Ensure(ctx, user)
	})
	if err != nil {
		return model.Profile{}, err
	}
	p := v.(model.Profile)

	c.mu.Lock()
	if e := c.get(user.ID); e.generation == gen {
		e.profile = &p
		e.profileAt = c.now()
	}
	c.mu.Unlock()

	return p, nil
}

// load runs fn once per key for all concurrent callers. The shared call is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx is done.
func (c *UserState) load(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// IsAdmin resolves the user's profile and applies the admin rules.
func (c *UserState) IsAdmin(ctx context.Context, user model.AuthUser) (bool, error) {
	p, err := c.Profile(ctx, user)
	if err != nil {
		return false, err
	}
	return c.profiles.IsAdmin(p), nil
}

func (c *UserState) Usage(ctx context.Context, user model.AuthUser, profile model.Profile) (model.AIUsageInfo, error) {
	c.mu.Lock()
	e := c.get(user.ID)
	if e.usage != nil && c.fresh(e.usageAt) {
		info := *e.usage
		c.mu.Unlock()
		return info, nil
	}
	gen := e.generation
	c.mu.Unlock()

	unlimited := c.profiles.IsAdmin(profile)
	key := "usage:" + user.ID + ":" + strconv.FormatBool(unlimited)
	v, err := c.load(ctx, key, func(ctx context.Context) (any, error) {
		return c.usage.Usage(ctx, user.ID, unlimited)
	})
	if err != nil {
		return model.AIUsageInfo{}, err
	}
	info := v.(model.AIUsageInfo)

	c.mu.Lock()
	if e := c.get(user.ID); e.generation == gen {
		e.usage = &info
		e.usageAt = c.now()
	}
	c.mu.Unlock()

	return info, nil
}

// State assembles the payload the browser mirror is seeded with.
func (c *UserState) State(ctx context.Context, user model.AuthUser) (model.UserState, error) {
	c.RememberUser(user)

	profile, err := c.Profile(ctx, user)
	if err != nil {
		return model.UserState{}, err
	}

	state := model.UserState{User: user, Profile: profile}

	usage, err := c.Usage(ctx, user, profile)
	if err != nil {
		// Usage is advisory; the page still renders without it.
		slog.Warn("failed to load ai usage", "user_id", user.ID, "error", err)
		return state, nil
	}
	state.AIUsageInfo = &usage

	return state, nil
}

func (c *UserState) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[userID]; ok {
		delete(c.entries, userID)
		c.seq++
	}
}

func (c *UserState) InvalidateProfile(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok {
		e.profile = nil
		e.usage = nil
		c.bump(e)
	}
}

func (c *UserState) InvalidateUsage(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok {
		e.usage = nil
		c.bump(e)
	}
}

// Prune drops entries nobody has touched for a full TTL.
func (c *UserState) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if !c.fresh(e.touched) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Run applies invalidation events from bus until ctx is done.
func (c *UserState) Run(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Prune(); n > 0 {
				slog.Debug("user state pruned", "entries", n)
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.apply(ev)
		}
	}
}

func (c *UserState) apply(ev event.Event) {
	if ev.UserID == "" {
		return
	}

	switch ev.Type {
	case event.TypeSessionEnded:
		c.Invalidate(ev.UserID)
	case event.TypeProfileCreated, event.TypeProfileUpdated:
		c.InvalidateProfile(ev.UserID)
	case event.TypeAIUsageChanged:
		c.InvalidateUsage(ev.UserID)
	}
}
