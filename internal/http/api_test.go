package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storytime/internal/auth"
	"storytime/internal/catalog"
	"storytime/internal/notify"
	"storytime/internal/repository/sqlite"
	"storytime/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type inbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (i *inbox) Send(_ context.Context, msg notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.msgs = append(i.msgs, msg)
	return nil
}

func (i *inbox) lastToken(t *testing.T, kind notify.Kind) string {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	for j := len(i.msgs) - 1; j >= 0; j-- {
		if i.msgs[j].Kind == kind {
			return i.msgs[j].Token
		}
	}
	t.Fatalf("no %s message delivered", kind)
	return ""
}

type fixedExchanger struct {
	err error
}

func (f fixedExchanger) Exchange(context.Context) (*catalog.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Credential{AccessToken: "catalog-access", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

type testServer struct {
	router *gin.Engine
	inbox  *inbox
	hook   *logtest.Hook
}

func newTestServer(t *testing.T, exchanger catalog.Exchanger) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	catalogRepo := sqlite.NewCatalogRepository(db)
	require.NoError(t, catalogRepo.Init(ctx))

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	tokens := auth.NewTokenService(auth.TokenConfig{Secret: []byte("api-test-secret"), Issuer: "storytime"})
	passwords := auth.NewPasswordHasher(bcrypt.MinCost)
	box := &inbox{}

	handler := NewHandler(
		service.NewAccountService(users, tokens, passwords, box, logger),
		service.NewProfileService(users, catalogRepo, passwords, logger),
		service.NewCatalogService(catalogRepo, exchanger, logger),
		logger,
	)
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testServer{router: router, inbox: box, hook: hook}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewReader([]byte(raw))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (s *testServer) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{
		"first_name": "Ann", "last_name": "Lee", "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, code, body)
	code, body = s.do(t, http.MethodGet, "/api/users/verifyEmail/"+s.inbox.lastToken(t, notify.KindVerify), "", nil)
	require.Equal(t, http.StatusCreated, code, body)
}

func TestAPI_RegisterVerifyLogin(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})

	code, body := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{
		"first_name": "Ann", "last_name": "Lee", "email": "ann@x.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ann@x.com", "password": "Secret123"})
	assert.Equal(t, http.StatusConflict, code, body)

	verifyToken := s.inbox.lastToken(t, notify.KindVerify)
	code, _ = s.do(t, http.MethodGet, "/api/users/verifyEmail/"+verifyToken, "", nil)
	assert.Equal(t, http.StatusCreated, code)
	code, body = s.do(t, http.MethodGet, "/api/users/verifyEmail/"+verifyToken, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Email is already verified. Please log in.", body["message"])

	token := s.login(t, "ann@x.com", "Secret123")
	assert.NotEmpty(t, token)

	code, wrong := s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ann@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, unknown := s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ghost@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, wrong, unknown)

	for _, entry := range s.hook.AllEntries() {
		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, verifyToken, "tokens never reach the log")
	}
}

func TestAPI_BadRequests(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})

	code, body := s.do(t, http.MethodPost, "/api/users/register", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body.", body["message"])

	code, body = s.do(t, http.MethodPost, "/api/users/register", "", gin.H{"email": "ann@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Firstname, Lastname, Email, and Password are required.", body["message"])

	code, _ = s.do(t, http.MethodPost, "/api/users/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/users/verifyEmail/not-a-token", "", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/users/resetpassword/not-a-token", "", gin.H{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_RegisterMailFailure(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})
	s.inbox.err = errors.New("smtp: connection refused")

	code, body := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{
		"first_name": "Ann", "last_name": "Lee", "email": "ann@x.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body["message"], "smtp")

	s.inbox.err = nil
	s.registerAndVerify(t, "ann@x.com", "Secret123")
}

func TestAPI_Gate(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})

	code, body := s.do(t, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Not authorized, no token.", body["message"])

	code, body = s.do(t, http.MethodGet, "/api/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Not authorized.", body["message"])

	req := httptest.NewRequest(http.MethodGet, "/api/users/library", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ProfileAndLibrary(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})
	s.registerAndVerify(t, "ann@x.com", "Secret123")
	token := s.login(t, "ann@x.com", "Secret123")

	code, body := s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	profile := body["profileData"].(map[string]any)
	assert.Equal(t, "ann@x.com", profile["email"])
	assert.Equal(t, "Ann", profile["first_name"])
	assert.NotContains(t, profile, "password_hash")

	code, _ = s.do(t, http.MethodPut, "/api/users/profile", token, gin.H{"last_name": "Smith"})
	assert.Equal(t, http.StatusOK, code)
	_, body = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	profile = body["profileData"].(map[string]any)
	assert.Equal(t, "Ann", profile["first_name"])
	assert.Equal(t, "Smith", profile["last_name"])

	code, _ = s.do(t, http.MethodPut, "/api/users/preferredlanguage", token, gin.H{"languageIds": []int{2, 1}})
	assert.Equal(t, http.StatusOK, code)
	_, body = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	profile = body["profileData"].(map[string]any)
	assert.Equal(t, []any{float64(2), float64(1)}, profile["languages"])

	code, _ = s.do(t, http.MethodPut, "/api/users/preferredlanguage", token, `{"languageIds":"en"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/users/savestory", token, gin.H{"storyId": "story-1"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/users/savestory", token, gin.H{"storyId": "story-2"})
	assert.Equal(t, http.StatusOK, code)
	code, body = s.do(t, http.MethodPost, "/api/users/savestory", token, gin.H{"storyId": "story-1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Story already saved.", body["message"])

	_, body = s.do(t, http.MethodGet, "/api/users/library", token, nil)
	assert.Equal(t, []any{"story-1", "story-2"}, body["stories"])

	code, _ = s.do(t, http.MethodDelete, "/api/users/removestory", token, gin.H{"storyId": "story-1"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/users/removestory", token, gin.H{"storyId": "story-1"})
	assert.Equal(t, http.StatusNotFound, code)

	_, body = s.do(t, http.MethodGet, "/api/users/library", token, nil)
	assert.Equal(t, []any{"story-2"}, body["stories"])
}

func TestAPI_UpdatePasswordAndSession(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})
	s.registerAndVerify(t, "ann@x.com", "Secret123")
	token := s.login(t, "ann@x.com", "Secret123")

	code, body := s.do(t, http.MethodGet, "/api/users/session", token, nil)
	require.Equal(t, http.StatusOK, code)
	refreshed, _ := body["token"].(string)
	require.NotEmpty(t, refreshed)

	code, _ = s.do(t, http.MethodPut, "/api/users/updatepassword", refreshed, gin.H{"password": "Changed123"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ann@x.com", "password": "Secret123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	s.login(t, "ann@x.com", "Changed123")

	code, _ = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusOK, code, "existing sessions survive a password change")
}

func TestAPI_ForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})
	s.registerAndVerify(t, "ann@x.com", "Secret123")

	code, _ := s.do(t, http.MethodPost, "/api/users/forgotpassword", "", gin.H{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/users/forgotpassword", "", gin.H{"email": "ann@x.com"})
	require.Equal(t, http.StatusOK, code)
	resetToken := s.inbox.lastToken(t, notify.KindReset)

	code, _ = s.do(t, http.MethodPost, "/api/users/resetpassword/"+resetToken, "", gin.H{"password": "Fresh1234"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/users/resetpassword/"+resetToken, "", gin.H{"password": "Again1234"})
	assert.Equal(t, http.StatusBadRequest, code)

	s.login(t, "ann@x.com", "Fresh1234")
}

func TestAPI_CatalogEndpoints(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})
	s.registerAndVerify(t, "ann@x.com", "Secret123")
	token := s.login(t, "ann@x.com", "Secret123")

	code, body := s.do(t, http.MethodGet, "/api/users/refreshToken", token, nil)
	require.Equal(t, http.StatusOK, code)
	cred := body["catalogToken"].(map[string]any)
	assert.Equal(t, "catalog-access", cred["access_token"])

	code, body = s.do(t, http.MethodGet, "/api/languages", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["languages"])

	code, body = s.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["categories"])

	failing := newTestServer(t, fixedExchanger{err: errors.New("upstream 401: invalid_client")})
	failing.registerAndVerify(t, "bob@x.com", "Secret123")
	bobToken := failing.login(t, "bob@x.com", "Secret123")
	code, body = failing.do(t, http.MethodGet, "/api/users/refreshToken", bobToken, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, strings.Contains(body["message"].(string), "invalid_client"))
}

func TestAPI_CORSPreflight(t *testing.T) {
	s := newTestServer(t, fixedExchanger{})

	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
