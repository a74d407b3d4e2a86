package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/db"
)

type queryProvider interface {
	GetUserBySubject(ctx context.Context, subject string) (db.User, error)
	UpsertUser(ctx context.Context, arg db.UpsertUserParams) (db.User, error)
}

// User is a café customer known by their identity-provider subject.
type User struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service keeps local user records in step with the identity provider.
type Service struct {
	queries queryProvider
}

// NewService constructs a Service.
func NewService(queries queryProvider) *Service {
	return &Service{queries: queries}
}

// Verify returns the user for id.Subject, creating it on first sight. created
// reports whether a new record was inserted.
func (s *Service) Verify(ctx context.Context, id common.Identity) (u User, created bool, err error) {
	subject := strings.TrimSpace(id.Subject)
	if subject == "" {
		return User{}, false, common.Unauthorized("token has no subject")
	}
	existing, err := s.queries.GetUserBySubject(ctx, subject)
	switch {
	case err == nil:
		if needsRefresh(existing, id) {
			existing, err = s.upsert(ctx, subject, id)
			if err != nil {
				return User{}, false, err
			}
		}
		return fromRow(existing), false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return User{}, false, fmt.Errorf("user: lookup: %w", err)
	}
	row, err := s.upsert(ctx, subject, id)
	if err != nil {
		return User{}, false, err
	}
	return fromRow(row), true, nil
}

// GetBySubject returns the user or a USER_NOT_FOUND AppError.
func (s *Service) GetBySubject(ctx context.Context, subject string) (User, error) {
	row, err := s.queries.GetUserBySubject(ctx, strings.TrimSpace(subject))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NotFound("USER_NOT_FOUND", "user not found; call verify-user first", err)
		}
		return User{}, fmt.Errorf("user: lookup: %w", err)
	}
	return fromRow(row), nil
}

func (s *Service) upsert(ctx context.Context, subject string, id common.Identity) (db.User, error) {
	row, err := s.queries.UpsertUser(ctx, db.UpsertUserParams{
		AuthSubject: subject,
		Email:       strings.TrimSpace(id.Email),
		Name:        strings.TrimSpace(id.Name),
	})
	if err != nil {
		return db.User{}, fmt.Errorf("user: upsert: %w", err)
	}
	return row, nil
}

func needsRefresh(row db.User, id common.Identity) bool {
	email := strings.TrimSpace(id.Email)
	name := strings.TrimSpace(id.Name)
	return (email != "" && email != row.Email) || (name != "" && name != row.Name)
}

func fromRow(row db.User) User {
	return User{ID: row.ID, Subject: row.AuthSubject, Email: row.Email, Name: row.Name, CreatedAt: row.CreatedAt}
}
