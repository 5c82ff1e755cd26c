package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	deleted []string
}

func newMemTokens(token string) *memTokens {
	m := &memTokens{data: map[string][]byte{}}
	if token != "" {
		m.data[common.TokenKey] = []byte(token)
		m.data[common.UserKey] = []byte(`{"id":"1"}`)
	}
	return m
}

func (m *memTokens) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memTokens) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, tokens *memTokens) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(Options{BaseURL: srv.URL + "/api/", Tokens: tokens})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := NewHTTPClient(Options{BaseURL: "localhost:5000", Tokens: newMemTokens("")})
	require.Error(t, err)

	_, err = NewHTTPClient(Options{BaseURL: "http://localhost:5000/api"})
	require.Error(t, err)

	c, err := NewHTTPClient(Options{BaseURL: "http://localhost:5000/api/", Tokens: newMemTokens("")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/api", c.baseURL)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestLogin_SendsCredentialsAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get(common.AuthorizationHeaderName))
		_, err := uuid.Parse(r.Header.Get(common.RequestIDHeaderName))
		assert.NoError(t, err)

		var creds models.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, models.Credentials{Email: "a@b.com", Password: "pw"}, creds)

		writeJSON(w, http.StatusOK, map[string]any{
			"token": "abc",
			"user":  map[string]string{"id": "1", "name": "A", "email": "a@b.com", "role": "student"},
		})
	}, newMemTokens(""))

	resp, err := c.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Token)
	assert.Equal(t, &models.User{ID: "1", Name: "A", Email: "a@b.com", Role: "student"}, resp.User)
}

func TestLogin_MissingFieldsDecodeAsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"id": "1"}})
	}, newMemTokens(""))

	resp, err := c.Login(context.Background(), models.Credentials{})
	require.NoError(t, err)
	assert.Empty(t, resp.Token)
	assert.NotNil(t, resp.User)
}

func TestRegister_ErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register", r.URL.Path)
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email already exists"})
	}, newMemTokens(""))

	_, err := c.Register(context.Background(), models.Registration{Name: "A", Email: "a@b.com", Password: "pw"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Email already exists", apiErr.Message)
	assert.Equal(t, "Email already exists", ServerMessage(err))
	assert.Equal(t, "request failed with status code 400: Email already exists", err.Error())
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestAPIError_NoMessageBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html>oops</html>")
	}, newMemTokens(""))

	err := c.Logout(context.Background())
	require.Error(t, err)
	assert.Equal(t, "request failed with status code 500", err.Error())
	assert.Empty(t, ServerMessage(err))
}

func TestRequests_CarryBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get(common.AuthorizationHeaderName))
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"id": "1", "name": "Server"}})
	}, newMemTokens("abc"))

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Server", u.Name)
}

func TestRequests_TokenReadFailureSendsNoHeader(t *testing.T) {
	tokens := newMemTokens("abc")
	tokens.getErr = errors.New("disk I/O error")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(common.AuthorizationHeaderName))
		w.WriteHeader(http.StatusNoContent)
	}, tokens)

	require.NoError(t, c.Logout(context.Background()))
}

func TestMe_MissingUserIsInvalidResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}, newMemTokens("abc"))

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestSuccessBodyNotJSON_IsInvalidResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<!doctype html>")
	}, newMemTokens(""))

	_, err := c.Login(context.Background(), models.Credentials{})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestUnauthorized_ClearsStoreAndFiresHook(t *testing.T) {
	tokens := newMemTokens("stale")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
	}, tokens)

	var fired int
	c.SetOnUnauthorized(func(context.Context) { fired++ })

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, fired)
	assert.ElementsMatch(t, common.CredentialKeys, tokens.deleted)

	tok, _ := tokens.Get(context.Background(), common.TokenKey)
	assert.Nil(t, tok)
}

func TestForbidden_IsUnauthorizedButKeepsStore(t *testing.T) {
	tokens := newMemTokens("abc")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Not allowed"})
	}, tokens)

	err := c.ChangePassword(context.Background(), models.PasswordChange{})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, tokens.deleted)
}

func TestUpdateProfile_PartialUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/auth/profile", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"name": "New Name"}, body)
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"name": "New Name"}})
	}, newMemTokens("abc"))

	p, err := c.UpdateProfile(context.Background(), models.UserPatch{Name: models.StringPtr("New Name")})
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "New Name", *p.Name)
	assert.Nil(t, p.Email)
}

func TestPasswordEndpoints(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, r.Method+" "+r.URL.EscapedPath()+" "+string(body))
		w.WriteHeader(http.StatusOK)
	}, newMemTokens("abc"))
	ctx := context.Background()

	require.NoError(t, c.ChangePassword(ctx, models.PasswordChange{CurrentPassword: "a", NewPassword: "b"}))
	require.NoError(t, c.ForgotPassword(ctx, "a@b.com"))
	require.NoError(t, c.ResetPassword(ctx, "tok/en", "new"))

	assert.Equal(t, []string{
		`PUT /api/auth/change-password {"currentPassword":"a","newPassword":"b"}`,
		`POST /api/auth/forgot-password {"email":"a@b.com"}`,
		`PUT /api/auth/reset-password/tok%2Fen {"password":"new"}`,
	}, got)
}

func TestTransportFailure_IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewHTTPClient(Options{BaseURL: srv.URL, Tokens: newMemTokens("")})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), models.Credentials{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestTimeout_IsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c, err := NewHTTPClient(Options{BaseURL: srv.URL, Tokens: newMemTokens(""), Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Me(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}
