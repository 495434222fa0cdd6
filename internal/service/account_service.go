package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storytime/internal/auth"
	"storytime/internal/domain"
	"storytime/internal/notify"
	"storytime/internal/repository"
)

// VerifyOutcome distinguishes a fresh verification from a repeated one.
type VerifyOutcome int

const (
	VerifyOutcomeVerified VerifyOutcome = iota + 1
	VerifyOutcomeAlreadyVerified
)

// RegisterInput carries the registration form. Password is cleartext and
// lives only for the duration of the call.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Session is an issued bearer credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AccountService drives registration, verification, login and password
// recovery on top of the credential store.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) error
	VerifyEmail(ctx context.Context, token string) (VerifyOutcome, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	RefreshSession(ctx context.Context, user *domain.User) (*Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	// Authenticate resolves a session bearer token to its live user record.
	Authenticate(ctx context.Context, bearer string) (*domain.User, error)
}

const (
	msgRegisterRequired = "Firstname, Lastname, Email, and Password are required."
	msgInvalidEmail     = "Invalid Email format."
	msgInvalidToken     = "Invalid token."
	msgLinkExpired      = "Verification link has expired. Please register again."
	msgLoginInstead     = "Please log in to continue."
	msgResetInvalid     = "Password reset link is invalid or expired, please try again."
	msgNotAuthorized    = "Not authorized."
)

type accountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordHasher
	notifier  notify.Notifier
	logger    *logrus.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordHasher,
	notifier notify.Notifier,
	logger *logrus.Logger,
) AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &accountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		notifier:  notifier,
		logger:    logger,
	}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)

	if !allPresent(in.FirstName, in.LastName, in.Email, in.Password) {
		return badRequest(msgRegisterRequired)
	}
	if !validEmail(in.Email) {
		return badRequest(msgInvalidEmail)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return conflict("User with this email already exists.")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return serverError(msgServer, err)
	}

	hash, err := hashPassword(s.passwords, in.Password)
	if err != nil {
		return err
	}

	token, expires, err := s.tokens.Issue(auth.PurposeVerifyEmail, auth.Subject{Email: in.Email})
	if err != nil {
		return serverError(msgServer, err)
	}

	// nothing is stored until the link has been handed to the notifier
	if err := s.notifier.Send(ctx, notify.Message{
		Kind:  notify.KindVerify,
		To:    in.Email,
		Token: token,
		Name:  in.FirstName,
	}); err != nil {
		s.logger.WithError(err).Warn("registration aborted: verification email not delivered")
		return serverError("Failed to send verification email, please try again later.", err)
	}

	user := &domain.User{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		PasswordHash:       hash,
		VerifyToken:        token,
		VerifyTokenExpires: expires,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("User with this email already exists.")
		}
		return serverError(msgServer, err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return nil
}

func (s *accountService) VerifyEmail(ctx context.Context, token string) (VerifyOutcome, error) {
	if strings.TrimSpace(token) == "" {
		return 0, conflict(msgInvalidToken)
	}

	user, err := s.users.GetByVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, conflict(msgInvalidToken)
		}
		return 0, serverError(msgServer, err)
	}

	expired := user.VerifyExpired(s.tokens.Now())
	if !expired {
		if _, err := s.tokens.Validate(token, auth.PurposeVerifyEmail); err != nil {
			if !errors.Is(err, auth.ErrTokenExpired) {
				return 0, conflict(msgInvalidToken)
			}
			expired = true
		}
	}

	if expired {
		if user.Verified {
			return 0, badRequest(msgLoginInstead)
		}
		deleted, err := s.users.DeleteUnverified(ctx, user.ID)
		if err != nil {
			return 0, serverError(msgServer, err)
		}
		if deleted {
			s.logger.WithField("user_id", user.ID).Info("abandoned registration removed")
		}
		return 0, conflict(msgLinkExpired)
	}

	if user.Verified {
		return VerifyOutcomeAlreadyVerified, nil
	}

	changed, err := s.users.MarkVerified(ctx, user.ID, token)
	if err != nil {
		return 0, serverError(msgServer, err)
	}
	if !changed {
		// a concurrent request got there first; report what it left behind
		current, err := s.users.GetByID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, conflict(msgInvalidToken)
			}
			return 0, serverError(msgServer, err)
		}
		if current.Verified {
			return VerifyOutcomeAlreadyVerified, nil
		}
		return 0, conflict(msgInvalidToken)
	}

	s.logger.WithField("user_id", user.ID).Info("email verified")
	return VerifyOutcomeVerified, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if !allPresent(email, password) {
		return nil, badRequest("Email and Password are required.")
	}
	if !validEmail(email) {
		return nil, badRequest(msgInvalidEmail)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// burn a comparison so unknown emails cost the same as wrong passwords
			_ = s.passwords.Compare(password, s.fallbackHash())
			return nil, unauthorized(msgInvalidCredentials)
		}
		return nil, serverError("Server error during login.", err)
	}

	if !user.Verified {
		return nil, conflict("Account verification pending. Please check your email.")
	}

	if err := s.passwords.Compare(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, unauthorized(msgInvalidCredentials)
		}
		return nil, serverError("Server error during login.", err)
	}

	return s.issueSession(ctx, user)
}

func (s *accountService) RefreshSession(ctx context.Context, user *domain.User) (*Session, error) {
	if user == nil {
		return nil, unauthorized(msgNotAuthorized)
	}
	return s.issueSession(ctx, user)
}

func (s *accountService) issueSession(ctx context.Context, user *domain.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(auth.PurposeSession, auth.Subject{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, serverError(msgServer, err)
	}
	if err := s.users.SetSessionToken(ctx, user.ID, token); err != nil {
		return nil, serverError("Error saving user token.", err)
	}
	return &Session{Token: token, ExpiresAt: expires}, nil
}

func (s *accountService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !allPresent(email) {
		return badRequest("Email is required.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return badRequest("Invalid email or email not found.")
		}
		return serverError(msgServer, err)
	}

	token, expires, err := s.tokens.Issue(auth.PurposeResetPassword, auth.Subject{UserID: user.ID, Email: user.Email})
	if err != nil {
		return serverError(msgServer, err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return serverError(msgServer, err)
	}

	if err := s.notifier.Send(ctx, notify.Message{
		Kind:  notify.KindReset,
		To:    user.Email,
		Token: token,
		Name:  user.FirstName,
	}); err != nil {
		log := s.logger.WithField("user_id", user.ID).WithError(err)
		if _, clearErr := s.users.ClearResetToken(context.WithoutCancel(ctx), user.ID, token); clearErr != nil {
			log = log.WithField("revoke_error", clearErr.Error())
		}
		log.Warn("password reset email not delivered")
		return serverError("Failed to send password reset link, please try again later.", err)
	}

	s.logger.WithField("user_id", user.ID).Info("password reset requested")
	return nil
}

func (s *accountService) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return badRequest("Token is required.")
	}
	if password == "" {
		return badRequest("Password is required.")
	}

	if _, err := s.tokens.Validate(token, auth.PurposeResetPassword); err != nil {
		return badRequest(msgResetInvalid)
	}

	hash, err := hashPassword(s.passwords, password)
	if err != nil {
		return err
	}

	consumed, err := s.users.ConsumeResetToken(ctx, token, hash, s.tokens.Now())
	if err != nil {
		return serverError(msgServer, err)
	}
	if !consumed {
		return badRequest(msgResetInvalid)
	}

	s.logger.Info("password reset completed")
	return nil
}

func (s *accountService) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	claims, err := s.tokens.Validate(bearer, auth.PurposeSession)
	if err != nil {
		return nil, unauthorized(msgNotAuthorized)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, unauthorized(msgNotAuthorized)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unauthorized(msgNotAuthorized)
		}
		return nil, serverError(msgServer, err)
	}
	return user, nil
}

func (s *accountService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash("storytime-unknown-account")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
