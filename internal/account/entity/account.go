package entity

import "time"

// Role values for accounts. RoleMember is the lowest privilege and is what
// mini-program provisioned accounts receive.
const (
	RoleMember = 0
	RoleAdmin  = 1
)

// Account represents a row in the accounts table. A single admin-role row is
// the blog operator identity used for credential login; member rows are
// provisioned on first mini-program login and carry an openid.
type Account struct {
	ID              int64      `db:"id" json:"id,string"`
	Username        string     `db:"username" json:"username"`
	Password        string     `db:"password" json:"-"`
	Email           string     `db:"email" json:"email,omitempty"`
	Openid          *string    `db:"openid" json:"openid,omitempty"`
	DisplayName     string     `db:"display_name" json:"display_name,omitempty"`
	AvatarURL       string     `db:"avatar_url" json:"avatar_url,omitempty"`
	Role            int        `db:"role" json:"role"`
	LoginEnabled    bool       `db:"login_enabled" json:"login_enabled"`
	LoginErrorCount int        `db:"login_error_count" json:"login_error_count"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsZero reports whether the account is the placeholder returned when no
// primary account exists yet. Callers must check before treating the value
// as a real identity.
func (a *Account) IsZero() bool {
	return a == nil || a.ID == 0
}
