// Package password provides secure password hashing and validation.
package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Errors for password operations.
var (
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber    = errors.New("password must contain at least one number")
	ErrPasswordMismatch    = errors.New("password does not match")
)

// DefaultCost is the default bcrypt cost factor.
const DefaultCost = 12

// Policy defines password requirements.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
}

// DefaultPolicy returns a sensible default password policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
	}
}

// Hasher provides password hashing and verification operations.
type Hasher struct {
	cost   int
	policy Policy
}

// Option configures the Hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt cost factor.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPolicy sets the password policy.
func WithPolicy(policy Policy) Option {
	return func(h *Hasher) {
		h.policy = policy
	}
}

// New creates a new password hasher with the given options.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		cost:   DefaultCost,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash hashes a password after validating it against the policy.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.ValidatePolicy(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a password against a hash.
func (h *Hasher) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidatePolicy checks a password against the configured policy.
func (h *Hasher) ValidatePolicy(password string) error {
	if len(password) < h.policy.MinLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		}
	}

	if h.policy.RequireUpper && !hasUpper {
		return ErrPasswordNoUppercase
	}
	if h.policy.RequireLower && !hasLower {
		return ErrPasswordNoLowercase
	}
	if h.policy.RequireNumber && !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}
