package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/config"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login and the user directory.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        Clock
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users  repository.UserRepository
	Logger *zap.Logger
	Clock  Clock
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.Users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Clock),
	}
}

// RegisterInput carries a self-service sign up.
type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// CreateUserInput is RegisterInput with an explicit role, used by operators.
type CreateUserInput struct {
	RegisterInput
	Role domain.Role
}

// ProfileUpdate changes the caller's own account. Nil fields are kept.
type ProfileUpdate struct {
	Name     *string
	Username *string
	Email    *string
	Password *string
}

// Session is the result of a successful login.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a plain user account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := s.CreateUser(ctx, CreateUserInput{RegisterInput: input, Role: domain.RoleUser})
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// CreateUser adds a directory user with any role.
func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	switch {
	case name == "":
		return nil, apperrors.NewFieldValidationError("name", "name is required")
	case username == "":
		return nil, apperrors.NewFieldValidationError("username", "username is required")
	case !validEmail(email):
		return nil, apperrors.NewFieldValidationError("email", "email is invalid")
	case !input.Role.IsValid():
		return nil, apperrors.NewFieldValidationError("role", fmt.Sprintf("unknown role %q", input.Role))
	}

	if err := s.ensureAvailable(ctx, 0, username, email); err != nil {
		return nil, err
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username or email already registered", nil)
		}
		return nil, storeError(err, "user")
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, storeError(err, "user")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.session(user)
}

// GetProfile returns the caller's account.
func (s *AuthService) GetProfile(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// UpdateProfile applies changes to the caller's own account. The role is
// never changed here.
func (s *AuthService) UpdateProfile(ctx context.Context, principal domain.Principal, update ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, storeError(err, "user")
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewFieldValidationError("name", "name is required")
		}
		user.Name = name
	}
	username, email := "", ""
	if update.Username != nil {
		username = strings.TrimSpace(*update.Username)
		if username == "" {
			return nil, apperrors.NewFieldValidationError("username", "username is required")
		}
		if username == user.Username {
			username = ""
		}
	}
	if update.Email != nil {
		email = strings.TrimSpace(*update.Email)
		if !validEmail(email) {
			return nil, apperrors.NewFieldValidationError("email", "email is invalid")
		}
		if strings.EqualFold(email, user.Email) {
			email = ""
		}
	}
	if err := s.ensureAvailable(ctx, user.ID, username, email); err != nil {
		return nil, err
	}
	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if update.Password != nil {
		hash, err := s.hash(*update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username or email already registered", nil)
		}
		return nil, storeError(err, "user")
	}
	return user, nil
}

// ListUsers returns the directory, optionally narrowed to one role. Only
// staff may browse it.
func (s *AuthService) ListUsers(ctx context.Context, principal domain.Principal, role *domain.Role) ([]domain.User, error) {
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only staff may list users")
	}
	if role != nil && !role.IsValid() {
		return nil, apperrors.NewFieldValidationError("role", fmt.Sprintf("unknown role %q", *role))
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return users, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) hash(password string) (string, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return "", apperrors.NewFieldValidationError("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

// ensureAvailable rejects a username or email held by another account.
// Empty values are not checked.
func (s *AuthService) ensureAvailable(ctx context.Context, self int64, username, email string) error {
	if username != "" {
		existing, err := s.users.GetByUsername(ctx, username)
		if err == nil && existing.ID != self {
			return apperrors.NewConflict("username already taken", map[string]any{"field": "username"})
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return storeError(err, "user")
		}
	}
	if email != "" {
		existing, err := s.users.GetByEmail(ctx, email)
		if err == nil && existing.ID != self {
			return apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return storeError(err, "user")
		}
	}
	return nil
}

var fieldValidator = validator.New()

func validEmail(email string) bool {
	return fieldValidator.Var(email, "required,email,max=254") == nil
}
