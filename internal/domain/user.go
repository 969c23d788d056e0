package domain

import (
	"time"
)

// Role is the account role stored with every user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is an account. Accounts log in with a one-time confirmation code
// mailed at sign-up instead of a password.
type User struct {
	ID                   string    `json:"-" db:"id"`
	Username             string    `json:"username" db:"username"`
	Email                string    `json:"email" db:"email"`
	FirstName            string    `json:"first_name" db:"first_name"`
	LastName             string    `json:"last_name" db:"last_name"`
	Bio                  string    `json:"bio" db:"bio"`
	Role                 Role      `json:"role" db:"role"`
	IsSuperuser          bool      `json:"-" db:"is_superuser"`
	ConfirmationCodeHash *string   `json:"-" db:"confirmation_code_hash"`
	CreatedAt            time.Time `json:"-" db:"created_at"`
	UpdatedAt            time.Time `json:"-" db:"updated_at"`
}

// SignupRequest is the body of POST /v1/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=150,username,notme"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

// SignupResponse echoes the identity the code was sent for.
type SignupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenRequest is the body of POST /v1/auth/token.
type TokenRequest struct {
	Username         string `json:"username" validate:"required"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// TokenResponse carries the issued credential pair.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest is the body of POST /v1/auth/token/refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// AccessResponse carries a re-issued access token.
type AccessResponse struct {
	Access string `json:"access"`
}

// CreateUserRequest is used by administrators to create accounts directly.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,max=150,username,notme"`
	Email     string `json:"email" validate:"required,max=254,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Bio       string `json:"bio"`
	Role      Role   `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// UpdateUserRequest is a partial account update. Only fields present in
// the payload are applied.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,max=150,username,notme"`
	Email     *string `json:"email,omitempty" validate:"omitempty,max=254,email"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	Bio       *string `json:"bio,omitempty"`
	Role      *Role   `json:"role,omitempty" validate:"omitempty,oneof=user moderator admin"`
}

// ApplyTo copies the present fields onto u. The role is only copied when
// allowRole is set; self-service updates pass false.
func (r *UpdateUserRequest) ApplyTo(u *User, allowRole bool) bool {
	changed := false
	if r.Username != nil {
		u.Username = *r.Username
		changed = true
	}
	if r.Email != nil {
		u.Email = *r.Email
		changed = true
	}
	if r.FirstName != nil {
		u.FirstName = *r.FirstName
		changed = true
	}
	if r.LastName != nil {
		u.LastName = *r.LastName
		changed = true
	}
	if r.Bio != nil {
		u.Bio = *r.Bio
		changed = true
	}
	if allowRole && r.Role != nil {
		u.Role = *r.Role
		changed = true
	}
	return changed
}
