package follow

const (
	LabelFriends    = "friends"
	LabelFollowing  = "following"
	LabelFollowBack = "follow back"
	LabelFollow     = "follow"
)

// Label picks the follow button text. Friendship wins over following, which
// wins over "follow back" (they follow me, I don't follow them yet).
func Label(isFriend, isFollowing, isFollowingMe bool) string {
	switch {
	case isFriend:
		return LabelFriends
	case isFollowing:
		return LabelFollowing
	case isFollowingMe:
		return LabelFollowBack
	default:
		return LabelFollow
	}
}
