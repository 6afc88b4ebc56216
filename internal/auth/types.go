package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// usernamePattern allows letters, digits, dots, hyphens and underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

const (
	maxUsernameLength = 64

	// maxPasswordLength bounds the work a single login can ask the hasher to do.
	maxPasswordLength = 1024
)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// ValidateCredentials checks the shape of a username/password pair before
// any lookup or hashing happens.
func ValidateCredentials(username, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case !IsValidUsername(username):
		return fmt.Errorf("%w: username must be 1-64 characters of letters, digits, '.', '_' or '-'", ErrInvalidInput)
	case password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	return nil
}

// ValidateLoginInput only checks presence and the password size cap. A
// username that could never have been registered is an unknown user, not
// bad input.
func ValidateLoginInput(username, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	return nil
}

// User is an account that can obtain bearer tokens.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the public view of a user returned by registration.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenInvalid       = errors.New("invalid token")

	// ErrCorruptCredential means a stored digest could not be parsed. It is
	// an internal fault, not a wrong password.
	ErrCorruptCredential = errors.New("stored credential is malformed")
)
