package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/common"
	"github.com/dmitrijs2005/eduportal/internal/logging"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every request to the auth service.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 1 << 20

// TokenStore is the part of the credential store the transport needs: it
// reads the bearer token per request and drops both credential slots on an
// unauthorized response.
type TokenStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// Options configures an HTTPClient. Only BaseURL and Tokens are required.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenStore
	// OnUnauthorized runs after the stored credentials were cleared because
	// the server answered 401.
	OnUnauthorized func(ctx context.Context)
	// Transport overrides the round tripper, mainly for tests.
	Transport http.RoundTripper
	Logger    logging.Logger
}

type HTTPClient struct {
	baseURL        string
	http           *http.Client
	tokens         TokenStore
	onUnauthorized func(ctx context.Context)
	log            logging.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", opts.BaseURL)
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	return &HTTPClient{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           &http.Client{Timeout: timeout, Transport: opts.Transport},
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		log:            log.With("component", "auth-client"),
	}, nil
}

// SetOnUnauthorized replaces the invalidation hook. It must be called
// before the client is shared between goroutines.
func (c *HTTPClient) SetOnUnauthorized(fn func(ctx context.Context)) {
	c.onUnauthorized = fn
}

func (c *HTTPClient) Register(ctx context.Context, r models.Registration) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var resp models.UserResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrInvalidResponse
	}
	return resp.User, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, p models.UserPatch) (*models.UserPatch, error) {
	var resp models.UserPatchResponse
	if err := c.do(ctx, http.MethodPut, "/auth/profile", p, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrInvalidResponse
	}
	return resp.User, nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, p models.PasswordChange) error {
	return c.do(ctx, http.MethodPut, "/auth/change-password", p, nil)
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

func (c *HTTPClient) ResetPassword(ctx context.Context, resetToken string, password string) error {
	path := "/auth/reset-password/" + url.PathEscape(resetToken)
	return c.do(ctx, http.MethodPut, path, map[string]string{"password": password}, nil)
}

// do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	c.authorize(ctx, req)

	log := c.log.With("method", method, "path", path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug(ctx, "request failed", "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	log.Debug(ctx, "request completed", "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidate(ctx)
		}
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) {
	token, err := c.tokens.Get(ctx, common.TokenKey)
	if err != nil {
		c.log.Warn(ctx, "cannot read stored token", "error", err)
		return
	}
	if len(token) > 0 {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+string(token))
	}
}

// invalidate drops the stored session after a 401 and notifies the hook.
func (c *HTTPClient) invalidate(ctx context.Context) {
	if err := c.tokens.Delete(ctx, common.CredentialKeys...); err != nil {
		c.log.Error(ctx, "failed to clear credentials after unauthorized response", "error", err)
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body models.ErrorResponse
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
