package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"storytime/internal/auth"
	"storytime/internal/domain"
	"storytime/internal/repository"
)

// Profile is the public view of a user.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Languages []int64
}

// ProfileService covers the authenticated profile and library operations.
// Callers pass the id of the user resolved by the request gate.
type ProfileService interface {
	Profile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) error
	UpdatePreferredLanguages(ctx context.Context, userID int64, languageIDs []int64) error
	// UpdatePassword replaces the password. currentPassword is optional; when
	// given it must match the stored hash.
	UpdatePassword(ctx context.Context, userID int64, newPassword, currentPassword string) error
	SaveStory(ctx context.Context, userID int64, storyID string) error
	RemoveStory(ctx context.Context, userID int64, storyID string) error
	Stories(ctx context.Context, userID int64) ([]string, error)
}

type profileService struct {
	users     repository.UserRepository
	catalog   repository.CatalogRepository
	passwords *auth.PasswordHasher
	logger    *logrus.Logger
}

func NewProfileService(
	users repository.UserRepository,
	catalog repository.CatalogRepository,
	passwords *auth.PasswordHasher,
	logger *logrus.Logger,
) ProfileService {
	if logger == nil {
		logger = logrus.New()
	}
	return &profileService{
		users:     users,
		catalog:   catalog,
		passwords: passwords,
		logger:    logger,
	}
}

func (s *profileService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, msgUserNotFound)
	}
	return &Profile{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Languages: user.Languages,
	}, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) error {
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if !validEmail(email) {
			return badRequest(msgInvalidEmail)
		}
		update.Email = &email
	}

	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict(fmt.Sprintf("%s is already in use, please choose a different one.", *update.Email))
		}
		return storeError(err, msgUserNotFound)
	}
	return nil
}

func (s *profileService) UpdatePreferredLanguages(ctx context.Context, userID int64, languageIDs []int64) error {
	if languageIDs == nil {
		return badRequest("languageIds is required.")
	}

	missing, err := s.catalog.MissingLanguages(ctx, languageIDs)
	if err != nil {
		return serverError(msgServer, err)
	}
	if len(missing) > 0 {
		return badRequest(fmt.Sprintf("Unknown language id(s): %v.", missing))
	}

	if err := s.users.ReplaceLanguages(ctx, userID, languageIDs); err != nil {
		return storeError(err, msgUserNotFound)
	}
	return nil
}

func (s *profileService) UpdatePassword(ctx context.Context, userID int64, newPassword, currentPassword string) error {
	if newPassword == "" {
		return badRequest("Password is required.")
	}

	if currentPassword != "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return storeError(err, msgUserNotFound)
		}
		if err := s.passwords.Compare(currentPassword, user.PasswordHash); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return unauthorized("Current password is incorrect.")
			}
			return serverError(msgServer, err)
		}
	}

	hash, err := hashPassword(s.passwords, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeError(err, msgUserNotFound)
	}

	s.logger.WithField("user_id", userID).Info("password updated")
	return nil
}

func (s *profileService) SaveStory(ctx context.Context, userID int64, storyID string) error {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return badRequest("StoryId is required.")
	}
	if err := s.users.AddSavedStory(ctx, userID, storyID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("Story already saved.")
		}
		return storeError(err, msgUserNotFound)
	}
	return nil
}

func (s *profileService) RemoveStory(ctx context.Context, userID int64, storyID string) error {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return badRequest("StoryId is required.")
	}
	if err := s.users.RemoveSavedStory(ctx, userID, storyID); err != nil {
		return storeError(err, "Invalid StoryId.")
	}
	return nil
}

func (s *profileService) Stories(ctx context.Context, userID int64) ([]string, error) {
	stories, err := s.users.ListSavedStories(ctx, userID)
	if err != nil {
		return nil, serverError(msgServer, err)
	}
	return stories, nil
}

// storeError maps repository failures to service errors.
func storeError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(notFoundMsg)
	}
	return serverError(msgServer, err)
}
