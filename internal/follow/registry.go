package follow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
)

type registryEntry struct {
	controller *Controller
	lastUsed   time.Time
}

// Registry hands out one shared Controller per signed-in user so every
// screen reads the same sets instead of keeping its own copy. Controllers
// nobody touched for a while are released by Sweep.
type Registry struct {
	follows  repositories.FollowRepository
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	controllers map[string]*registryEntry
}

func NewRegistry(follows repositories.FollowRepository, notifier *Notifier, logger *slog.Logger) *Registry {
	return &Registry{
		follows:     follows,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
		controllers: map[string]*registryEntry{},
	}
}

// SignIn (re)initialises the controller of identity and loads its sets. The
// controller is returned even when the initial load fails.
func (r *Registry) SignIn(ctx context.Context, identity models.Identity) (*Controller, error) {
	return r.acquire(ctx, identity, true)
}

// Acquire returns the controller of identity, signing it in first when this
// is the first request seen for that user.
func (r *Registry) Acquire(ctx context.Context, identity models.Identity) (*Controller, error) {
	return r.acquire(ctx, identity, false)
}

func (r *Registry) acquire(ctx context.Context, identity models.Identity, force bool) (*Controller, error) {
	for {
		c := r.controller(identity.ID)

		var err error
		if current, ok := c.Identity(); force || !ok || current.ID != identity.ID {
			err = c.SignIn(ctx, identity)
		}

		// SignOut or Sweep may have dropped c while it was signing in
		if r.owns(identity.ID, c) {
			return c, err
		}
		c.SignOut()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c, ctxErr
		}
	}
}

// SignOut resets and forgets the controller of userID.
func (r *Registry) SignOut(userID string) {
	r.mu.Lock()
	entry, ok := r.controllers[userID]
	delete(r.controllers, userID)
	r.mu.Unlock()

	if ok {
		entry.controller.SignOut()
		r.logger.Info("Follow state released", "user_id", userID)
	}
}

// Sweep signs out and forgets every controller unused for longer than idle
// that has no toggle running and no subscriber. It returns how many were
// released.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var released []*Controller
	for userID, entry := range r.controllers {
		if entry.lastUsed.After(cutoff) || entry.controller.busy() {
			continue
		}
		delete(r.controllers, userID)
		released = append(released, entry.controller)
	}
	r.mu.Unlock()

	for _, c := range released {
		c.SignOut()
	}
	if len(released) > 0 {
		r.logger.Info("Idle follow state released", "count", len(released))
	}
	return len(released)
}

// Run sweeps every idle/2 until ctx is done.
func (r *Registry) Run(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}

func (r *Registry) owns(userID string, c *Controller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.controllers[userID]
	return ok && entry.controller == c
}

func (r *Registry) controller(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.controllers[userID]
	if !ok {
		entry = &registryEntry{controller: NewController(r.follows, r.notifier, r.logger.With("user_id", userID))}
		r.controllers[userID] = entry
	}
	entry.lastUsed = r.now()
	return entry.controller
}
