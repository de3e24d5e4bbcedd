package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotSignedIn      = errors.New("not signed in")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
	ErrToggleInProgress = errors.New("a follow toggle for this user is already in progress")
	ErrResyncFailed     = errors.New("follow state resync failed")
)

// Snapshot is a copy of the controller's sets. Version grows with every
// state change so subscribers can drop snapshots delivered out of order.
type Snapshot struct {
	UserID    string   `json:"user_id"`
	Version   uint64   `json:"version"`
	Following []string `json:"following"`
	Followers []string `json:"followers"`
	Friends   []string `json:"friends"`
}

// ToggleResult describes the relationship after a toggle.
type ToggleResult struct {
	Following bool `json:"following"`
	Created   bool `json:"created"`
	Friend    bool `json:"friend"`
}

type set map[string]struct{}

func newSet(ids []string) set {
	s := make(set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s set) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s set) sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type subscriber struct {
	mu     sync.Mutex
	fn     func(Snapshot)
	active bool
}

// Controller holds who the signed-in user follows, who follows them and who
// is a mutual friend, plus follower/following counts of viewed profiles.
// The sets are rebuilt from the follows table after every mutation; local
// updates made before the rebuild only hide network latency.
type Controller struct {
	follows  repositories.FollowRepository
	notifier *Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	identity   *models.Identity
	generation uint64
	version    uint64
	following  set
	followers  set
	friends    set
	stats      map[string]models.FollowStats
	// target id -> generation of the toggle holding the guard
	inFlight map[string]uint64

	// A rebuild only commits when it started after everything already
	// visible: its sequence number must exceed committedSeq.
	syncSeq      uint64
	committedSeq uint64

	subscribers map[uint64]*subscriber
	nextSubID   uint64
}

// NewController returns a signed-out controller.
func NewController(follows repositories.FollowRepository, notifier *Notifier, logger *slog.Logger) *Controller {
	c := &Controller{
		follows:     follows,
		notifier:    notifier,
		logger:      logger,
		subscribers: map[uint64]*subscriber{},
	}
	c.resetLocked()
	return c
}

func (c *Controller) resetLocked() {
	c.following = set{}
	c.followers = set{}
	c.friends = set{}
	c.stats = map[string]models.FollowStats{}
	c.inFlight = map[string]uint64{}
	c.generation++
	c.version++
	c.committedSeq = c.syncSeq
}

// SignIn injects identity, drops all state of the previous session and
// loads the follow sets.
func (c *Controller) SignIn(ctx context.Context, identity models.Identity) error {
	c.mu.Lock()
	c.identity = &identity
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return c.LoadFollowingStatus(ctx)
}

// SignOut clears the identity and every set. Results of requests started
// before the sign-out are discarded when they arrive.
func (c *Controller) SignOut() {
	c.mu.Lock()
	c.identity = nil
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Identity returns the signed-in identity.
func (c *Controller) Identity() (models.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

// LoadFollowingStatus rebuilds following, followers and friends from the
// store. Without an identity it does nothing. Nothing is replaced unless all
// three queries succeed.
func (c *Controller) LoadFollowingStatus(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return nil
	}
	userID := c.identity.ID
	gen := c.generation
	c.syncSeq++
	seq := c.syncSeq
	c.mu.Unlock()

	following, err := c.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		c.logger.Error("Loading following failed", "user_id", userID, "error", err)
		return fmt.Errorf("load following: %w", err)
	}

	followers, err := c.follows.GetFollowerIDs(ctx, userID)
	if err != nil {
		c.logger.Error("Loading followers failed", "user_id", userID, "error", err)
		return fmt.Errorf("load followers: %w", err)
	}

	friends, err := c.follows.GetFollowersAmong(ctx, userID, following)
	if err != nil {
		c.logger.Error("Loading mutual follows failed", "user_id", userID, "error", err)
		return fmt.Errorf("load friends: %w", err)
	}

	c.mu.Lock()
	if gen != c.generation || seq <= c.committedSeq {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale follow state", "user_id", userID, "seq", seq)
		return nil
	}
	c.committedSeq = seq
	c.following = newSet(following)
	c.followers = newSet(followers)
	c.friends = newSet(friends)
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// ToggleFollow unfollows targetID when it is followed and follows it
// otherwise, then resyncs. A failed follow/unfollow leaves the state as it
// was. When only the final resync fails, the result is still returned along
// with an error wrapping ErrResyncFailed.
func (c *Controller) ToggleFollow(ctx context.Context, targetID string) (ToggleResult, error) {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ToggleResult{}, ErrNotSignedIn
	}
	self := *c.identity
	if targetID == self.ID {
		c.mu.Unlock()
		return ToggleResult{}, ErrCannotFollowSelf
	}
	if _, busy := c.inFlight[targetID]; busy {
		c.mu.Unlock()
		return ToggleResult{}, ErrToggleInProgress
	}
	gen := c.generation
	c.inFlight[targetID] = gen
	wasFollowing := c.following.has(targetID)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// a new session may already hold the guard for the same target
		if owner, ok := c.inFlight[targetID]; ok && owner == gen {
			delete(c.inFlight, targetID)
		}
		c.mu.Unlock()
	}()

	var result ToggleResult

	if wasFollowing {
		if err := c.follows.Unfollow(ctx, self.ID, targetID); err != nil {
			c.logger.Error("Unfollow failed", "user_id", self.ID, "target_id", targetID, "error", err)
			return ToggleResult{Following: true, Friend: c.IsFriend(targetID)}, fmt.Errorf("unfollow: %w", err)
		}

		c.applyLocal(gen, func() {
			delete(c.following, targetID)
			delete(c.friends, targetID)
		})
	} else {
		created, err := c.follows.FollowIdempotent(ctx, self.ID, targetID)
		if err != nil {
			c.logger.Error("Follow failed", "user_id", self.ID, "target_id", targetID, "error", err)
			return ToggleResult{}, fmt.Errorf("follow: %w", err)
		}

		if created {
			if err := c.notifier.NotifyOnFollow(ctx, self.ID, targetID, self.Nickname()); err != nil {
				c.logger.Error("Creating follow notification failed", "user_id", self.ID, "target_id", targetID, "error", err)
			}
		}

		c.applyLocal(gen, func() {
			c.following[targetID] = struct{}{}
		})

		mutual := c.follows.IsMutual(ctx, self.ID, targetID)
		if mutual {
			c.applyLocal(gen, func() {
				c.friends[targetID] = struct{}{}
			})
		}

		result = ToggleResult{Following: true, Created: created, Friend: mutual}
	}

	if err := c.LoadFollowingStatus(ctx); err != nil {
		return result, fmt.Errorf("%w: %w", ErrResyncFailed, err)
	}

	c.mu.Lock()
	if gen == c.generation {
		result.Following = c.following.has(targetID)
		result.Friend = c.friends.has(targetID)
	}
	c.mu.Unlock()

	return result, nil
}

// applyLocal runs an optimistic update unless the session changed. Any
// rebuild that started before the update is made stale by it.
func (c *Controller) applyLocal(gen uint64, update func()) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	update()
	c.committedSeq = c.syncSeq
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// LoadUserStats counts followers and following of any user and caches the
// result under userID. On error the cache is left untouched.
func (c *Controller) LoadUserStats(ctx context.Context, userID string) (models.FollowStats, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	var stats models.FollowStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.follows.GetFollowersCount(gctx, userID)
		if err != nil {
			return fmt.Errorf("count followers: %w", err)
		}
		stats.Followers = n
		return nil
	})
	g.Go(func() error {
		n, err := c.follows.GetFollowingCount(gctx, userID)
		if err != nil {
			return fmt.Errorf("count following: %w", err)
		}
		stats.Following = n
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("Loading user stats failed", "user_id", userID, "error", err)
		return models.FollowStats{}, err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.stats[userID] = stats
	}
	c.mu.Unlock()

	return stats, nil
}

// Stats returns the cached counts of userID.
func (c *Controller) Stats(userID string) (models.FollowStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.stats[userID]
	return stats, ok
}

func (c *Controller) IsFollowing(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.following.has(userID)
}

func (c *Controller) IsFollowedBy(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.followers.has(userID)
}

func (c *Controller) IsFriend(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.friends.has(userID)
}

// LabelFor is Label applied to the current sets.
func (c *Controller) LabelFor(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Label(c.friends.has(userID), c.following.has(userID), c.followers.has(userID))
}

// Snapshot returns a copy of the current sets.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:   c.version,
		Following: c.following.sorted(),
		Followers: c.followers.sorted(),
		Friends:   c.friends.sorted(),
	}
	if c.identity != nil {
		snap.UserID = c.identity.ID
	}
	return snap
}

// busy reports whether a toggle is running or anyone is subscribed.
func (c *Controller) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight) > 0 || len(c.subscribers) > 0
}

// Subscribe registers fn to receive a snapshot after every state change. fn
// is never called once the returned unsubscribe function has returned; it
// must not call unsubscribe itself.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	s := &subscriber{fn: fn, active: true}

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = s
	c.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()

		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) publish(snap Snapshot) {
	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		if s.active {
			s.fn(snap)
		}
		s.mu.Unlock()
	}
}
