package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"coursehub/internal/auth"
	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const bcryptCost = 10

// dummyHash is compared against when the email is unknown so both failure
// paths of Login cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("coursehub-dummy-password"), bcryptCost)

// TokenRevoker records that a token id must no longer be accepted.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// SignupInput carries the fields of a new user.
type SignupInput struct {
	Email        string
	Password     string
	Username     string
	DepartmentID uint
	Level        string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, identity auth.Identity) error
	Me(ctx context.Context, identity auth.Identity) (*model.User, error)
}

type authService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	tokens      *auth.TokenService
	revoker     TokenRevoker
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewAuthService creates a new authentication service. revoker may be nil, in
// which case logout only succeeds client side.
func NewAuthService(
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	tokens *auth.TokenService,
	revoker TokenRevoker,
	log logrus.FieldLogger,
) AuthService {
	return &authService{
		users:       users,
		departments: departments,
		tokens:      tokens,
		revoker:     revoker,
		log:         log,
		now:         time.Now,
	}
}

// Signup creates a new user with a hashed password.
func (s *authService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || in.Password == "" || username == "" {
		return nil, fmt.Errorf("%w: email, password and username are required", apperrors.ErrValidation)
	}
	level, ok := model.ParseLevel(in.Level)
	if !ok {
		return nil, fmt.Errorf("%w: level must be student or assistant", apperrors.ErrValidation)
	}

	if _, err := s.departments.FindByID(ctx, in.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown department %d", apperrors.ErrValidation, in.DepartmentID)
		}
		return nil, fmt.Errorf("check department: %w", err)
	}

	// Check if user already exists
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrEmailAlreadyRegistered
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Username:     username,
		DepartmentID: in.DepartmentID,
		Level:        level,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent signup
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "level": user.Level}).Info("user signed up")
	return user, nil
}

// Login authenticates a user and issues a session token.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the presented token for the rest of its lifetime. It fails
// when the revocation could not be recorded, since the token would stay valid.
func (s *authService) Logout(ctx context.Context, identity auth.Identity) error {
	if s.revoker == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, identity.TokenID, identity.ExpiresAt.Sub(s.now())); err != nil {
		s.log.WithError(err).WithField("user_id", identity.UserID).Error("failed to revoke token")
		return fmt.Errorf("%w: revoke token: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Me returns the user behind identity.
func (s *authService) Me(ctx context.Context, identity auth.Identity) (*model.User, error) {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", identity.UserID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
