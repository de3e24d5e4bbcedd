package follow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/sidequest/backend/internal/dbtest"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	alice = models.Identity{ID: "a11ce000-0000-4000-8000-000000000001", DisplayName: "alice"}
	bob   = models.Identity{ID: "b0b00000-0000-4000-8000-000000000002", DisplayName: "bob"}
	carol = models.Identity{ID: "ca201000-0000-4000-8000-000000000003", DisplayName: "carol"}
	dave  = models.Identity{ID: "da7e0000-0000-4000-8000-000000000004"}
)

var errBoom = errors.New("network unreachable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	db            *gorm.DB
	follows       *repositories.PostgresFollowRepository
	notifications repositories.NotificationRepository
}

func newTestEnv(t *testing.T) *testEnv {
	db := dbtest.Open(t)
	return &testEnv{
		db:            db,
		follows:       repositories.NewPostgresFollowRepository(db, discardLogger()),
		notifications: repositories.NewPostgresNotificationRepository(db),
	}
}

func (e *testEnv) controller(t *testing.T, follows repositories.FollowRepository, identity models.Identity) *Controller {
	c := NewController(follows, NewNotifier(e.notifications, discardLogger()), discardLogger())
	require.NoError(t, c.SignIn(context.Background(), identity))
	return c
}

func (e *testEnv) edge(t *testing.T, from, to models.Identity) {
	require.NoError(t, e.db.Create(&models.Follow{FollowerID: from.ID, FollowingID: to.ID}).Error)
}

func (e *testEnv) notificationsTo(t *testing.T, to models.Identity) []models.Notification {
	list, err := e.notifications.GetByRecipientID(context.Background(), to.ID)
	require.NoError(t, err)
	return list
}

// stubFollows wraps a real repository and injects failures and pauses.
type stubFollows struct {
	repositories.FollowRepository

	followErr         error
	unfollowErr       error
	followingErr      error
	followersErr      error
	followersCountErr error

	beforeFollow      func()
	afterFollowingIDs func()
}

func (s *stubFollows) FollowIdempotent(ctx context.Context, followerID, followingID string) (bool, error) {
	if s.beforeFollow != nil {
		s.beforeFollow()
	}
	if s.followErr != nil {
		return false, s.followErr
	}
	return s.FollowRepository.FollowIdempotent(ctx, followerID, followingID)
}

func (s *stubFollows) Unfollow(ctx context.Context, followerID, followingID string) error {
	if s.unfollowErr != nil {
		return s.unfollowErr
	}
	return s.FollowRepository.Unfollow(ctx, followerID, followingID)
}

func (s *stubFollows) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	if s.followingErr != nil {
		return nil, s.followingErr
	}
	ids, err := s.FollowRepository.GetFollowingIDs(ctx, userID)
	if s.afterFollowingIDs != nil {
		s.afterFollowingIDs()
	}
	return ids, err
}

func (s *stubFollows) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	if s.followersErr != nil {
		return nil, s.followersErr
	}
	return s.FollowRepository.GetFollowerIDs(ctx, userID)
}

func (s *stubFollows) GetFollowersCount(ctx context.Context, userID string) (int64, error) {
	if s.followersCountErr != nil {
		return 0, s.followersCountErr
	}
	return s.FollowRepository.GetFollowersCount(ctx, userID)
}

// pauseFirst returns a hook that parks its first caller until release is
// closed. Later callers pass straight through.
func pauseFirst(entered, release chan struct{}) func() {
	var calls atomic.Int32
	return func() {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	}
}

type failingNotifications struct {
	repositories.NotificationRepository
}

func (failingNotifications) CreateNotification(context.Context, *models.Notification) error {
	return errBoom
}

func TestController_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.controller(t, env.follows, alice)
	b := env.controller(t, env.follows, bob)

	// A follows B
	res, err := a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Following: true, Created: true}, res)
	assert.Equal(t, []string{bob.ID}, a.Snapshot().Following)
	assert.Empty(t, a.Snapshot().Friends)
	assert.Equal(t, LabelFollowing, a.LabelFor(bob.ID))

	notes := env.notificationsTo(t, bob)
	require.Len(t, notes, 1)
	assert.Equal(t, alice.ID, notes[0].FromUserID)
	assert.Equal(t, bob.ID, notes[0].ToUserID)
	assert.Equal(t, "alice", notes[0].FromUserNickname)
	assert.Equal(t, models.NotificationTypeFollow, notes[0].Type)
	assert.False(t, notes[0].Read)

	// B sees A as a follower and gets a follow back label
	require.NoError(t, b.LoadFollowingStatus(ctx))
	assert.Equal(t, LabelFollowBack, b.LabelFor(alice.ID))

	// B follows A
	res, err = b.ToggleFollow(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, res.Friend)
	assert.Equal(t, []string{alice.ID}, b.Snapshot().Friends)

	require.NoError(t, a.LoadFollowingStatus(ctx))
	assert.Equal(t, []string{bob.ID}, a.Snapshot().Friends)
	assert.Equal(t, LabelFriends, a.LabelFor(bob.ID))

	// A unfollows B
	res, err = a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{}, res)
	assert.Empty(t, a.Snapshot().Following)
	assert.Empty(t, a.Snapshot().Friends)

	require.NoError(t, b.LoadFollowingStatus(ctx))
	assert.NotContains(t, b.Snapshot().Followers, alice.ID)
	assert.Empty(t, b.Snapshot().Friends)

	// unfollowing notifies nobody
	assert.Len(t, env.notificationsTo(t, bob), 1)
	assert.Len(t, env.notificationsTo(t, alice), 1)
}

func TestController_RefollowOfExistingEdgeDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.controller(t, env.follows, alice)

	// the edge appears remotely after our last resync
	env.edge(t, alice, bob)
	assert.False(t, a.IsFollowing(bob.ID))

	res, err := a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Following)
	assert.False(t, res.Created)
	assert.True(t, a.IsFollowing(bob.ID))
	assert.Empty(t, env.notificationsTo(t, bob))

	_, err = a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, a.IsFollowing(bob.ID))
	assert.Empty(t, env.notificationsTo(t, bob))
}

func TestController_UnknownNicknameFallback(t *testing.T) {
	env := newTestEnv(t)

	d := env.controller(t, env.follows, dave)
	_, err := d.ToggleFollow(context.Background(), alice.ID)
	require.NoError(t, err)

	notes := env.notificationsTo(t, alice)
	require.Len(t, notes, 1)
	assert.Equal(t, models.UnknownNickname, notes[0].FromUserNickname)
}

func TestController_ToggleRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signedOut := NewController(env.follows, NewNotifier(env.notifications, discardLogger()), discardLogger())
	_, err := signedOut.ToggleFollow(ctx, bob.ID)
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.NoError(t, signedOut.LoadFollowingStatus(ctx))

	a := env.controller(t, env.follows, alice)
	_, err = a.ToggleFollow(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrCannotFollowSelf)
}

func TestController_FollowFailureLeavesState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stub := &stubFollows{FollowRepository: env.follows, followErr: errBoom}
	a := env.controller(t, stub, alice)
	before := a.Snapshot()

	res, err := a.ToggleFollow(ctx, bob.ID)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, res.Following)
	assert.Equal(t, before, a.Snapshot())
	assert.Empty(t, env.notificationsTo(t, bob))
}

func TestController_UnfollowFailureLeavesState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.edge(t, alice, bob)
	env.edge(t, bob, alice)

	stub := &stubFollows{FollowRepository: env.follows}
	a := env.controller(t, stub, alice)
	require.True(t, a.IsFriend(bob.ID))

	stub.unfollowErr = errBoom
	res, err := a.ToggleFollow(ctx, bob.ID)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, res.Following)
	assert.True(t, res.Friend)
	assert.True(t, a.IsFollowing(bob.ID))
	assert.True(t, a.IsFriend(bob.ID))
}

func TestController_NotificationFailureKeepsFollow(t *testing.T) {
	env := newTestEnv(t)

	a := NewController(env.follows, NewNotifier(failingNotifications{env.notifications}, discardLogger()), discardLogger())
	require.NoError(t, a.SignIn(context.Background(), alice))

	res, err := a.ToggleFollow(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, a.IsFollowing(bob.ID))

	following, err := env.follows.IsFollowing(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestController_ResyncFailureKeepsOptimisticState(t *testing.T) {
	env := newTestEnv(t)

	stub := &stubFollows{FollowRepository: env.follows}
	a := env.controller(t, stub, alice)

	stub.followersErr = errBoom
	res, err := a.ToggleFollow(context.Background(), bob.ID)
	assert.ErrorIs(t, err, ErrResyncFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, res.Following)
	assert.True(t, a.IsFollowing(bob.ID))
}

func TestController_InFlightGuard(t *testing.T) {
	env := newTestEnv(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	stub := &stubFollows{FollowRepository: env.follows}
	stub.beforeFollow = pauseFirst(entered, release)
	a := env.controller(t, stub, alice)

	done := make(chan error, 1)
	go func() {
		_, err := a.ToggleFollow(context.Background(), bob.ID)
		done <- err
	}()
	<-entered

	_, err := a.ToggleFollow(context.Background(), bob.ID)
	assert.ErrorIs(t, err, ErrToggleInProgress)

	// other targets are not blocked
	_, err = a.ToggleFollow(context.Background(), carol.ID)
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{bob.ID, carol.ID}, a.Snapshot().Following)

	// the guard is released once the toggle returns
	_, err = a.ToggleFollow(context.Background(), bob.ID)
	assert.NoError(t, err)
	assert.False(t, a.IsFollowing(bob.ID))
}

func TestController_StaleResyncIsDiscarded(t *testing.T) {
	env := newTestEnv(t)

	stub := &stubFollows{FollowRepository: env.follows}
	a := env.controller(t, stub, alice)

	read := make(chan struct{})
	release := make(chan struct{})
	stub.afterFollowingIDs = pauseFirst(read, release)

	// this resync reads "following nobody" and then stalls
	done := make(chan error, 1)
	go func() { done <- a.LoadFollowingStatus(context.Background()) }()
	<-read

	_, err := a.ToggleFollow(context.Background(), bob.ID)
	require.NoError(t, err)
	require.True(t, a.IsFollowing(bob.ID))

	close(release)
	require.NoError(t, <-done)

	assert.True(t, a.IsFollowing(bob.ID))
}

func TestController_SignOutDiscardsInFlightResults(t *testing.T) {
	env := newTestEnv(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	stub := &stubFollows{FollowRepository: env.follows}
	stub.beforeFollow = pauseFirst(entered, release)
	a := env.controller(t, stub, alice)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.ToggleFollow(context.Background(), bob.ID)
	}()
	<-entered

	a.SignOut()
	close(release)
	<-done

	_, ok := a.Identity()
	assert.False(t, ok)
	assert.Empty(t, a.Snapshot().Following)
	assert.Empty(t, a.Snapshot().UserID)
}

func TestController_SignInReleasesToggleGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	firstIn, releaseFirst := make(chan struct{}), make(chan struct{})
	secondIn, releaseSecond := make(chan struct{}), make(chan struct{})
	var calls atomic.Int32
	stub := &stubFollows{FollowRepository: env.follows}
	stub.beforeFollow = func() {
		switch calls.Add(1) {
		case 1:
			close(firstIn)
			<-releaseFirst
		case 2:
			close(secondIn)
			<-releaseSecond
		}
	}
	a := env.controller(t, stub, alice)

	first := make(chan error, 1)
	go func() {
		_, err := a.ToggleFollow(ctx, bob.ID)
		first <- err
	}()
	<-firstIn

	// a fresh session does not inherit the stalled toggle's guard
	require.NoError(t, a.SignIn(ctx, alice))
	second := make(chan error, 1)
	go func() {
		_, err := a.ToggleFollow(ctx, bob.ID)
		second <- err
	}()
	<-secondIn

	// the stale toggle finishing must not release the new session's guard
	close(releaseFirst)
	require.NoError(t, <-first)
	_, err := a.ToggleFollow(ctx, bob.ID)
	assert.ErrorIs(t, err, ErrToggleInProgress)

	close(releaseSecond)
	require.NoError(t, <-second)
	assert.True(t, a.IsFollowing(bob.ID))

	_, err = a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, a.IsFollowing(bob.ID))
}

func TestController_ResyncConvergence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.controller(t, env.follows, alice)

	var wg sync.WaitGroup
	for _, target := range []models.Identity{bob, carol, dave} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.ToggleFollow(ctx, target.ID)
		}()
	}
	wg.Wait()

	// changes made by other users while we were not looking
	env.edge(t, carol, alice)
	env.edge(t, dave, alice)
	require.NoError(t, env.follows.Unfollow(ctx, alice.ID, dave.ID))

	_, err := a.ToggleFollow(ctx, bob.ID)
	require.NoError(t, err)
	require.NoError(t, a.LoadFollowingStatus(ctx))

	following, err := env.follows.GetFollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	followers, err := env.follows.GetFollowerIDs(ctx, alice.ID)
	require.NoError(t, err)

	snap := a.Snapshot()
	assert.ElementsMatch(t, following, snap.Following)
	assert.ElementsMatch(t, followers, snap.Followers)
	assert.Equal(t, []string{carol.ID}, snap.Friends)
	assert.ElementsMatch(t, []string{carol.ID}, snap.Following)
}

func TestController_LoadFailureKeepsPreviousSets(t *testing.T) {
	env := newTestEnv(t)

	env.edge(t, alice, bob)
	stub := &stubFollows{FollowRepository: env.follows}
	a := env.controller(t, stub, alice)
	before := a.Snapshot()

	env.edge(t, alice, carol)
	stub.followersErr = errBoom
	assert.ErrorIs(t, a.LoadFollowingStatus(context.Background()), errBoom)
	assert.Equal(t, before, a.Snapshot())

	stub.followersErr = nil
	stub.followingErr = errBoom
	assert.ErrorIs(t, a.LoadFollowingStatus(context.Background()), errBoom)
	assert.Equal(t, before, a.Snapshot())
}

func TestController_LoadUserStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.edge(t, alice, bob)
	env.edge(t, carol, bob)
	env.edge(t, bob, alice)

	stub := &stubFollows{FollowRepository: env.follows}
	a := env.controller(t, stub, alice)

	stats, err := a.LoadUserStats(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStats{Followers: 2, Following: 1}, stats)

	cached, ok := a.Stats(bob.ID)
	assert.True(t, ok)
	assert.Equal(t, stats, cached)

	// a failure for carol must not touch bob's entry nor create one for carol
	stub.followersCountErr = errBoom
	_, err = a.LoadUserStats(ctx, carol.ID)
	assert.ErrorIs(t, err, errBoom)

	cached, ok = a.Stats(bob.ID)
	assert.True(t, ok)
	assert.Equal(t, stats, cached)
	_, ok = a.Stats(carol.ID)
	assert.False(t, ok)

	// a failed refresh of bob keeps the old entry too
	_, err = a.LoadUserStats(ctx, bob.ID)
	assert.Error(t, err)
	cached, _ = a.Stats(bob.ID)
	assert.Equal(t, stats, cached)
}

func TestController_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	a := env.controller(t, env.follows, alice)

	var mu sync.Mutex
	var snaps []Snapshot
	unsubscribe := a.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	_, err := a.ToggleFollow(context.Background(), bob.ID)
	require.NoError(t, err)

	mu.Lock()
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Version, snaps[i-1].Version)
	}
	received := len(snaps)
	mu.Unlock()
	assert.Equal(t, []string{bob.ID}, last.Following)
	assert.Equal(t, alice.ID, last.UserID)

	unsubscribe()
	_, err = a.ToggleFollow(context.Background(), bob.ID)
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, snaps, received)
	mu.Unlock()
}

func TestController_SignInResetsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.edge(t, alice, bob)
	env.edge(t, carol, dave)

	c := env.controller(t, env.follows, alice)
	_, err := c.LoadUserStats(ctx, bob.ID)
	require.NoError(t, err)
	require.True(t, c.IsFollowing(bob.ID))

	require.NoError(t, c.SignIn(ctx, carol))
	assert.False(t, c.IsFollowing(bob.ID))
	assert.True(t, c.IsFollowing(dave.ID))
	_, ok := c.Stats(bob.ID)
	assert.False(t, ok)

	c.SignOut()
	snap := c.Snapshot()
	assert.Empty(t, snap.UserID)
	assert.Empty(t, snap.Following)
	assert.Empty(t, snap.Followers)
	assert.Empty(t, snap.Friends)
}

func TestController_ConcurrentTogglesDifferentTargets(t *testing.T) {
	env := newTestEnv(t)
	a := env.controller(t, env.follows, alice)

	targets := []models.Identity{bob, carol, dave}
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := a.ToggleFollow(ctx, target.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, a.LoadFollowingStatus(context.Background()))
	assert.ElementsMatch(t, []string{bob.ID, carol.ID, dave.ID}, a.Snapshot().Following)
	for _, target := range targets {
		assert.Len(t, env.notificationsTo(t, target), 1)
	}
}
