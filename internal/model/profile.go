package model

import "time"

// Role tags stored in profiles.user_role.
const (
	RoleApp          = "app"
	RoleCMS          = "cms"
	RolePsychologist = "psicologos"
)

// AuthorizationStatus is the readable form of the profiles.authorized tri-state.
type AuthorizationStatus string

const (
	StatusPending    AuthorizationStatus = "pending"
	StatusAuthorized AuthorizationStatus = "authorized"
	StatusRejected   AuthorizationStatus = "rejected"
)

// Profile is a child or staff account.
// Authorized is nil while the guardian has not decided yet.
type Profile struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	AvatarPath      string     `json:"avatar_path"`
	GuardianEmail   string     `json:"-"`
	Authorized      *bool      `json:"authorized"`
	UserRole        string     `json:"user_role"`
	ApprovalToken   string     `json:"-"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	AuthorizedBy    *string    `json:"authorized_by,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	IsOnline        bool       `json:"is_online"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Status maps the tri-state column to its named state.
func (p Profile) Status() AuthorizationStatus {
	switch {
	case p.Authorized == nil:
		return StatusPending
	case *p.Authorized:
		return StatusAuthorized
	default:
		return StatusRejected
	}
}

// ProfileSummary is the public slice of a profile attached to chats and messages.
type ProfileSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	AvatarPath string `json:"avatar_path"`
	UserRole   string `json:"user_role"`
	Authorized *bool  `json:"authorized,omitempty"`
}

// DisplayName prefers the full name, then the username.
func (p ProfileSummary) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}
