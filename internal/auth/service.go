package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when the password doesn't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSuchUser is returned when logging in with an unknown id.
	ErrNoSuchUser = errors.New("no such user")
	// ErrUserExists is returned when trying to register with an existing id.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned when registration fields don't meet constraints.
	ErrInvalidInput = errors.New("invalid input")
)

// Registration holds the fields of a REGISTER command. Ids and names end up
// in comma separated list replies, so commas are rejected. SYSTEM is the
// sender id of server notices and cannot be registered.
type Registration struct {
	ID       string `validate:"required,max=32,printascii,excludesall=0x2C,ne=SYSTEM"`
	Name     string `validate:"required,max=64,excludesall=0x2C"`
	Password string `validate:"required,min=4,max=72"`
}

// Service provides account registration and login.
type Service struct {
	store    store.UserStore
	validate *validator.Validate
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore) *Service {
	return &Service{
		store:    userStore,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register validates and stores a new account with a hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (*store.User, error) {
	if err := s.validate.Struct(reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	exists, err := s.store.UserExists(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		ID:           reg.ID,
		Username:     reg.Name,
		PasswordHash: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent REGISTER for the same id.
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login checks the credentials and returns the account.
func (s *Service) Login(ctx context.Context, id, password string) (*store.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	return user, nil
}
