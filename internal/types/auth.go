package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// UserCredential is the persisted identity record: one per email.
type UserCredential struct {
	ID           int64     `json:"id" example:"1"`
	Email        string    `json:"email" example:"a@b.com"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewCredential is what signup hands to the credential store.
type NewCredential struct {
	Email        string
	PasswordHash string
}

// AuthClaims is the identity the Access Guard attaches to an authenticated request.
type AuthClaims struct {
	Sub   int64  `json:"sub" example:"1"`
	Email string `json:"email" example:"a@b.com"`
}

// AuthRequest is the signup/signin payload.
type AuthRequest struct {
	Email    string `json:"email" example:"a@b.com"`
	Password string `json:"password" example:"pw"`
}

// TokenResponse is returned by signup and signin.
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"jwt.token.here"`
}

// Validate checks the email format and the password length in bytes.
func (r AuthRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, MaxPasswordBytes)),
	)
}
