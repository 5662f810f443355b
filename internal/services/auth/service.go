// Package auth implements account registration and credential verification
// against the storage backend.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/model"
	"github.com/croftja/parley/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidName        = errors.New("name must be 4-45 characters, letters and digits only")
	ErrInvalidPassword    = errors.New("password must be 4-8 characters and include at least one digit")
	ErrNameTaken          = errors.New("name already exists")
)

// Name and password syntax bounds
const (
	minNameLen     = 4
	maxNameLen     = 45
	minPasswordLen = 4
	maxPasswordLen = 8
)

// Service handles account creation and login verification
type Service struct {
	storage storage.Storage
	clock   clock.Clock
}

// New creates a new auth Service
func New(store storage.Storage, clk clock.Clock) *Service {
	return &Service{
		storage: store,
		clock:   clk,
	}
}

// ValidName reports whether name satisfies the account name syntax:
// 4 to 45 characters, letters and digits only.
func ValidName(name string) bool {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return false
	}
	for _, r := range name {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

// ValidPassword reports whether pw satisfies the password syntax:
// 4 to 8 characters with at least one digit.
func ValidPassword(pw string) bool {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return false
	}
	for _, r := range pw {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Register validates the candidate name and password and persists a new
// account with a bcrypt password hash. Name uniqueness is enforced by the
// storage backend, so concurrent registrations of one name produce exactly
// one account.
func (s *Service) Register(ctx context.Context, name, password string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	if !ValidPassword(password) {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	account := &model.Account{
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.storage.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, model.ErrAccountExists) {
			return ErrNameTaken
		}
		return err
	}
	return nil
}

// Login verifies name and password against the stored account.
func (s *Service) Login(ctx context.Context, name, password string) error {
	account, err := s.storage.GetAccount(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AccountExists reports whether an account is registered under name.
func (s *Service) AccountExists(ctx context.Context, name string) (bool, error) {
	return s.storage.AccountExists(ctx, name)
}
