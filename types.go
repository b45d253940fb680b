package authcore

import (
	"time"

	"github.com/conduitblog/authcore/jwt"
	"github.com/google/uuid"
)

// User is the public view of a registered account. It never carries the
// password hash.
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Version   uint64
	CreatedAt time.Time
	// UpdatedAt is nil until the credential is first changed.
	UpdatedAt *time.Time
}

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Username string `validate:"required,max=64"`
	Email    string `validate:"required,max=254,email"`
	Password string `validate:"required"`
}

// LoginRequest is the input of [Engine.Login]. The client IP used for
// throttling is read from the context, see [WithClientIP].
type LoginRequest struct {
	Email    string `validate:"required,max=254"`
	Password string `validate:"required"`
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
	// Rehashed reports that the stored hash was upgraded to the current
	// password parameters during this login.
	Rehashed bool
}

// AccessData is the application payload carried in the data claim of every
// access token. Public tokens carry the zero value.
type AccessData struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Identity is the result of [Engine.Authenticate].
type Identity struct {
	Subject   jwt.Subject
	Username  string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserID returns the authenticated user, or false for a public token.
func (i Identity) UserID() (uuid.UUID, bool) {
	return i.Subject.UserID()
}

// IsPublic reports whether the token was issued to the public subject.
func (i Identity) IsPublic() bool {
	return i.Subject.IsPublic()
}
