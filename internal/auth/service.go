package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service handles signup, login and credential verification.
type Service struct {
	store  storage.Storage
	tokens *TokenService
	log    *logger.Logger
	cost   int
}

func NewService(store storage.Storage, tokens *TokenService, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		log:    log.With("service", "AuthService"),
		cost:   bcrypt.DefaultCost,
	}
}

func (s *Service) Signup(ctx context.Context, name, email, password string) (*models.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, "", apperr.InvalidArg("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", apperr.InvalidArg("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, "", apperr.InvalidArg("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, "", apperr.Conflict("email already registered")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", apperr.Internal("lookup user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", apperr.Internal("hash password", err)
	}
	user := &models.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, "", apperr.Conflict("email already registered")
		}
		return nil, "", apperr.Internal("create user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperr.Internal("issue token", err)
	}
	s.log.Info("user signed up", "user_id", user.ID)
	return user, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apperr.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return nil, "", apperr.Internal("lookup user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.Unauthenticated("invalid email or password")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperr.Internal("issue token", err)
	}
	return user, token, nil
}

// VerifyToken resolves a bearer credential to its claims.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("missing credential")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "invalid credential", err)
	}
	return claims, nil
}
