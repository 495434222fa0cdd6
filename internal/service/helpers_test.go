package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storytime/internal/auth"
	"storytime/internal/notify"
	"storytime/internal/repository"
	"storytime/internal/repository/sqlite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *recordingNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no message sent")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testEnv struct {
	clock    *fakeClock
	notifier *recordingNotifier
	users    repository.UserRepository
	catalog  repository.CatalogRepository
	tokens   *auth.TokenService
	accounts AccountService
	profiles ProfileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	catalogRepo := sqlite.NewCatalogRepository(db)
	require.NoError(t, catalogRepo.Init(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("test-secret"),
		Issuer: "storytime-test",
		Now:    clock.Now,
	})
	passwords := auth.NewPasswordHasher(bcrypt.MinCost)
	notifier := &recordingNotifier{}

	return &testEnv{
		clock:    clock,
		notifier: notifier,
		users:    users,
		catalog:  catalogRepo,
		tokens:   tokens,
		accounts: NewAccountService(users, tokens, passwords, notifier, logger),
		profiles: NewProfileService(users, catalogRepo, passwords, logger),
	}
}

var errSMTPDown = errors.New("smtp down")

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr), "want *service.Error, got %T: %v", err, err)
	require.Equal(t, kind, svcErr.Kind, "unexpected kind: %v", err)
	return svcErr
}

// registerVerified registers a user, follows the verification link and
// returns the stored user id.
func (e *testEnv) registerVerified(t *testing.T, email, password string) int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.accounts.Register(ctx, RegisterInput{
		FirstName: "Ann", LastName: "Lee", Email: email, Password: password,
	}))
	outcome, err := e.accounts.VerifyEmail(ctx, e.notifier.last(t).Token)
	require.NoError(t, err)
	require.Equal(t, VerifyOutcomeVerified, outcome)

	user, err := e.users.GetByEmail(ctx, email)
	require.NoError(t, err)
	return user.ID
}
