package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/ratelimit"
)

type Store interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// Session is what a successful registration or login hands back.
type Session struct {
	Token string
	User  *domain.User
}

type Service struct {
	users   Store
	tokens  *auth.TokenManager
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

func NewService(users Store, tokens *auth.TokenManager, limiter ratelimit.Limiter, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, limiter: limiter, logger: logger}
}

type Registration struct {
	Email    string
	Name     string
	Password string
}

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, in Registration) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := checkName(name); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Password) < 6 {
		return nil, domain.InvalidInput("password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{Email: email, Name: name, PasswordHash: hash, Role: domain.RoleCustomer}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return s.session(u)
}

// Authenticate checks the credentials of one login attempt. Attempts are
// throttled per email address.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			s.logger.WarnContext(ctx, "login rate limiter unavailable", "error", err)
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthFailed
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, domain.ErrAuthFailed
	}

	return s.session(u)
}

func (s *Service) Profile(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	return s.users.GetByID(ctx, caller.UserID)
}

// ProfileUpdate holds the fields to change; nil leaves a field as it is.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

func (s *Service) UpdateProfile(ctx context.Context, caller domain.Identity, in ProfileUpdate) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != u.Email {
			if _, err := s.users.GetByEmail(ctx, email); err == nil {
				return nil, domain.Conflict("email already in use")
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			u.Email = email
		}
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := checkName(name); err != nil {
			return nil, err
		}
		u.Name = name
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) session(u *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.InvalidInput("email must be a valid email address")
	}
	if len(email) > 255 {
		return "", domain.InvalidInput("email must be at most 255 characters")
	}
	return email, nil
}

func checkName(name string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return domain.InvalidInput("name must be between 2 and 100 characters")
	}
	return nil
}
