package application

import (
	"time"

	"github.com/viralforge/identity-service/internal/domain"
)

type Config struct {
	// RefreshSessionTTL bounds how long an unrotated refresh token stays usable. Zero disables expiry.
	RefreshSessionTTL time.Duration
	// UnifyCredentialFailures reports unknown email and wrong password with the same message.
	UnifyCredentialFailures bool
}

type RegisterRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RevokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Result is the uniform outcome of every workflow operation.
// Tokens are only set when OK is true.
type Result struct {
	OK           bool               `json:"flag"`
	Message      string             `json:"message"`
	AccessToken  string             `json:"token,omitempty"`
	RefreshToken string             `json:"refreshToken,omitempty"`
	Kind         domain.FailureKind `json:"-"`
}

const (
	MsgModelEmpty          = "Model is empty."
	MsgInvalidEmail        = "Email is not valid."
	MsgPasswordMismatch    = "Passwords do not match."
	MsgAlreadyRegistered   = "User is already registered."
	MsgAccountCreated      = "Account created!"
	MsgUserNotFound        = "User not found."
	MsgInvalidCredentials  = "Email or Password are not valid."
	MsgRoleNotFound        = "User's role not found."
	MsgLoginSuccess        = "Login successfully!"
	MsgInvalidRefreshToken = "Invalid refresh token."
	MsgRefreshExpired      = "Refresh token expired."
	MsgTokenRefreshed      = "Token refreshed successfully."
	MsgSignedOut           = "Signed out."
	MsgInternalFailure     = "Request could not be processed."
)

type issuedTokens struct {
	access  string
	refresh string
}
