package users

import (
	"context"
	"log"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Store interface {
	UpsertUserByBrowserID(ctx context.Context, id, browserID string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	IncrementUserSummaries(ctx context.Context, id string) error
	UpdateUserProfile(ctx context.Context, id, name, email, passwordHash string) (models.User, error)
}

type Service struct {
	store  Store
	logger *log.Logger
}

func NewService(st Store) *Service {
	return &Service{store: st, logger: log.New(log.Writer(), "[USERS] ", log.LstdFlags)}
}

// Ensure returns the user identified by browserID, creating it on first sight.
func (s *Service) Ensure(ctx context.Context, browserID string) (models.User, error) {
	browserID = strings.TrimSpace(browserID)
	if browserID == "" {
		return models.User{}, errs.Validation("browser id required")
	}
	u, err := s.store.UpsertUserByBrowserID(ctx, uuid.NewString(), browserID)
	if err != nil {
		s.logger.Printf("ensure user %s: %v", browserID, err)
		return models.User{}, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		s.logger.Printf("get user %s: %v", id, err)
		return models.User{}, err
	}
	return u, nil
}

func (s *Service) IncrementSummaries(ctx context.Context, id string) error {
	if err := s.store.IncrementUserSummaries(ctx, id); err != nil {
		s.logger.Printf("increment summaries for %s: %v", id, err)
		return err
	}
	return nil
}

type ProfileInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SetProfile updates the optional profile fields; the password is stored as a bcrypt hash.
func (s *Service) SetProfile(ctx context.Context, id string, in ProfileInput) (models.User, error) {
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) > 200 {
		return models.User{}, errs.Validation("name too long")
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return models.User{}, errs.Validation("invalid email %q", email)
		}
		email = strings.ToLower(addr.Address)
	}
	var hash string
	if in.Password != "" {
		if len(in.Password) < minPasswordLen {
			return models.User{}, errs.Validation("password must be at least %d characters", minPasswordLen)
		}
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, err
		}
		hash = string(b)
	}
	u, err := s.store.UpdateUserProfile(ctx, id, name, email, hash)
	if err != nil {
		s.logger.Printf("update profile %s: %v", id, err)
		return models.User{}, err
	}
	return u, nil
}
