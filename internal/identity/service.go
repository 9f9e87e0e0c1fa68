package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden is returned when the acting staff member may not manage users.
	ErrForbidden = errors.New("only superadmins may manage staff users")
)

// Service manages the staff user lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RegisterInput captures data required to create a staff user.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     Role
}

// Register creates a staff user on behalf of a superadmin.
func (s *Service) Register(ctx context.Context, actor Actor, input RegisterInput) (User, error) {
	if actor.Role != RoleSuperAdmin {
		return User{}, ErrForbidden
	}
	return s.create(ctx, input)
}

// EnsureBootstrap seeds the first superadmin if the email is not yet registered.
func (s *Service) EnsureBootstrap(ctx context.Context, email, password string) (User, error) {
	email = normaliseEmail(email)
	if user, err := s.repo.FindByEmail(ctx, email); err == nil {
		return user, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	return s.create(ctx, RegisterInput{Email: email, Name: "Bootstrap Admin", Password: password, Role: RoleSuperAdmin})
}

func (s *Service) create(ctx context.Context, input RegisterInput) (User, error) {
	email := normaliseEmail(input.Email)
	if !strings.Contains(email, "@") {
		return User{}, errors.New("a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	role, ok := ParseRole(string(input.Role))
	if !ok {
		return User{}, fmt.Errorf("unknown role %q", input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies staff credentials and records the login.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByEmail(ctx, normaliseEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	at := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, at); err != nil {
		return User{}, err
	}
	user.LastLogin = &at

	return user, nil
}

// Get returns a staff user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
