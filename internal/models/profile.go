package models

import "time"

// Profile mirrors the remote profiles table. Rows are created by the
// authentication backend; the client only updates points and the bio.
type Profile struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Nickname  *string   `json:"nickname"`
	Bio       *string   `json:"bio,omitempty"`
	Email     *string   `json:"email,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Points    *int64    `json:"points,omitempty" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the nickname or UnknownNickname when it is unset.
func (p *Profile) DisplayName() string {
	if p == nil || p.Nickname == nil || *p.Nickname == "" {
		return UnknownNickname
	}
	return *p.Nickname
}

// UpdateBioRequest is the body of PUT /profile. A blank bio clears it.
type UpdateBioRequest struct {
	Bio *string `json:"bio" validate:"omitempty,max=500"`
}

// ProfileCompact is the shape returned by nickname search and friend lists.
type ProfileCompact struct {
	ID        string  `json:"id"`
	Nickname  *string `json:"nickname"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (p *Profile) ToCompact() ProfileCompact {
	return ProfileCompact{
		ID:        p.ID,
		Nickname:  p.Nickname,
		Bio:       p.Bio,
		AvatarURL: p.AvatarURL,
	}
}
