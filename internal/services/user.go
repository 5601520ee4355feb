package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown username and a wrong
// password. Callers must not distinguish the two cases in user-visible
// output, to avoid username enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrMissingFields is returned when a registration field is empty.
var ErrMissingFields = errors.New("missing required fields")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.UserSummary, error)
	UpdateLastLogin(ctx context.Context, username string) (time.Time, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register hashes the password and stores a new user. The raw password is
// never persisted.
func (s *UserService) Register(ctx context.Context, username, password, firstName, lastName, phone string) (types.User, error) {
	username = strings.TrimSpace(username)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	phone = strings.TrimSpace(phone)
	if username == "" || password == "" || firstName == "" || lastName == "" || phone == "" {
		return types.User{}, ErrMissingFields
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        phone,
		PasswordHash: string(hashed),
	})
}

// Authenticate verifies the password and, on success, stamps
// last_login_at and returns the stored profile.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}

	lastLogin, err := s.repo.UpdateLastLogin(ctx, username)
	if err != nil {
		return types.User{}, err
	}
	user.LastLoginAt = &lastLogin
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]types.UserSummary, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Get(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}
