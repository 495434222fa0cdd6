package repository

import (
	"context"
	"errors"
	"time"

	"storytime/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("already exists")
)

// UserRepository defines persistence operations for User entities.
//
// Token consumption methods are conditional updates: they only change the row
// when the stored value still matches and report whether a row was affected.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByVerifyToken(ctx context.Context, token string) (*domain.User, error)

	MarkVerified(ctx context.Context, id int64, token string) (bool, error)
	DeleteUnverified(ctx context.Context, id int64) (bool, error)

	SetSessionToken(ctx context.Context, id int64, token string) error
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	ClearResetToken(ctx context.Context, id int64, token string) (bool, error)
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (bool, error)

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) error
	ReplaceLanguages(ctx context.Context, id int64, languageIDs []int64) error

	AddSavedStory(ctx context.Context, id int64, storyID string) error
	RemoveSavedStory(ctx context.Context, id int64, storyID string) error
	ListSavedStories(ctx context.Context, id int64) ([]string, error)
}
