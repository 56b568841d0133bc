package services

import (
	"context"
	"errors"
	"strings"

	"github.com/CUknot/realty_crm/models"
)

// TokenIssuer signs a bearer token for a user.
type TokenIssuer func(userID uint) (string, error)

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// AuthResult is returned by Register and Login. SessionID goes into the
// session cookie; Token is for clients that prefer bearer auth.
type AuthResult struct {
	User      *models.User
	SessionID string
	Token     string
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	issue    TokenIssuer
}

func NewAuthService(users UserStore, sessions SessionStore, issue TokenIssuer) *AuthService {
	return &AuthService{users: users, sessions: sessions, issue: issue}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, Conflict("User with this email already exists")
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, Unexpected("failed to check existing user", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Phone:    strings.TrimSpace(in.Phone),
		Password: in.Password,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, Conflict("User with this email already exists")
		}
		return nil, Unexpected("failed to create user", err)
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, Unauthorized("Invalid email or password")
		}
		return nil, Unexpected("failed to load user", err)
	}
	if err := user.ValidatePassword(password); err != nil {
		return nil, Unauthorized("Invalid email or password")
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return Unexpected("failed to end session", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, Unexpected("failed to create session", err)
	}
	token, err := s.issue(user.ID)
	if err != nil {
		return nil, Unexpected("failed to generate token", err)
	}
	return &AuthResult{User: user, SessionID: sessionID, Token: token}, nil
}
