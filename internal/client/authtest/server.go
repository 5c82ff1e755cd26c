package authtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Route paths as registered on the fake server.
const (
	RouteRegister       = "/api/auth/register"
	RouteLogin          = "/api/auth/login"
	RouteLogout         = "/api/auth/logout"
	RouteMe             = "/api/auth/me"
	RouteProfile        = "/api/auth/profile"
	RouteChangePassword = "/api/auth/change-password"
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password/:token"
)

const userIDKey = "userID"

var (
	errNoToken          = echo.NewHTTPError(http.StatusUnauthorized, "No token, authorization denied")
	errTokenInvalid     = echo.NewHTTPError(http.StatusUnauthorized, "Token is not valid")
	errInvalidLogin     = echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials")
	errUserExists       = echo.NewHTTPError(http.StatusBadRequest, "User already exists")
	errUserNotFound     = echo.NewHTTPError(http.StatusNotFound, "User not found")
	errWrongPassword    = echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
	errResetTokenBad    = echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired token")
	errEmailTaken       = echo.NewHTTPError(http.StatusBadRequest, "Email already in use")
	errMalformedPayload = echo.NewHTTPError(http.StatusBadRequest, "Malformed request body")
)

type account struct {
	user     models.User
	password string
}

type failure struct {
	status  int
	message string
}

// Request is one request observed by the server.
type Request struct {
	Method        string
	Path          string
	RequestID     string
	Authorization string
}

type Options struct {
	// Secret signs issued tokens. A random secret is used when empty.
	Secret []byte
	// TokenTTL is the validity of issued tokens, one hour by default.
	TokenTTL time.Duration
}

type Server struct {
	URL string

	srv      *httptest.Server
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate

	mu          sync.Mutex
	accounts    map[string]*account // by user id
	revoked     map[string]struct{}
	resetTokens map[string]string // reset token -> user id
	failures    map[string]failure
	gates       map[string]*Gate
	requests    []Request
}

// NewServer starts a fake auth service. Its base URL, including the /api
// prefix, is s.URL + "/api".
func NewServer(opts Options) *Server {
	s := &Server{
		secret:      opts.Secret,
		ttl:         opts.TokenTTL,
		validate:    newValidator(),
		accounts:    map[string]*account{},
		revoked:     map[string]struct{}{},
		resetTokens: map[string]string{},
		failures:    map[string]failure{},
		gates:       map[string]*Gate{},
	}
	if len(s.secret) == 0 {
		s.secret = common.GenerateRandByteArray(32)
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	return s
}

// BaseURL is the API base the client should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.srv.Close()
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: s.validate}
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(s.record)
	e.Use(s.inject)

	g := e.Group("/api/auth")
	g.POST("/register", s.register)
	g.POST("/login", s.login)
	g.POST("/logout", s.logout, s.requireAuth)
	g.GET("/me", s.me, s.requireAuth)
	g.PUT("/profile", s.updateProfile, s.requireAuth)
	g.PUT("/change-password", s.changePassword, s.requireAuth)
	g.POST("/forgot-password", s.forgotPassword)
	g.PUT("/reset-password/:token", s.resetPassword)

	return e
}

// AddUser seeds an account and returns it with a generated id when u.ID
// is empty.
func (s *Server) AddUser(u models.User, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(u, password)
}

func (s *Server) addLocked(u models.User, password string) models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = "student"
	}
	s.accounts[u.ID] = &account{user: u, password: password}
	return u
}

// User returns the stored account with the given email.
func (s *Server) User(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a := s.byEmail(email); a != nil {
		return a.user, true
	}
	return models.User{}, false
}

// IssueToken signs a token for userID with the given validity.
func (s *Server) IssueToken(userID string, ttl time.Duration) string {
	tok, err := GenerateToken(userID, s.secret, ttl)
	if err != nil {
		panic(fmt.Sprintf("authtest: sign token: %v", err))
	}
	return tok
}

// RevokeToken makes the server reject token with 401.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = struct{}{}
}

// ResetToken returns the last password reset token issued for email.
func (s *Server) ResetToken(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byEmail(email)
	if a == nil {
		return "", false
	}
	for tok, id := range s.resetTokens {
		if id == a.user.ID {
			return tok, true
		}
	}
	return "", false
}

// Fail makes every request to route answer status with message until
// ClearFailures is called.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]failure{}
}

// Hold blocks requests to route until the returned gate is released.
func (s *Server) Hold(route string) *Gate {
	g := newGate()
	s.mu.Lock()
	s.gates[route] = g
	s.mu.Unlock()
	return g
}

// Requests returns the requests observed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit route.
func (s *Server) Count(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == route {
			n++
		}
	}
	return n
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        req.Method,
			Path:          c.Path(),
			RequestID:     req.Header.Get(common.RequestIDHeaderName),
			Authorization: req.Header.Get(common.AuthorizationHeaderName),
		})
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		g := s.gates[c.Path()]
		f, failing := s.failures[c.Path()]
		s.mu.Unlock()

		if g != nil {
			if err := g.wait(c.Request().Context()); err != nil {
				return err
			}
		}
		if failing {
			return echo.NewHTTPError(f.status, f.message)
		}
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			return errNoToken
		}
		token := strings.TrimPrefix(header, common.BearerPrefix)

		userID, err := UserIDFromToken(token, s.secret)
		if err != nil {
			return errTokenInvalid
		}

		s.mu.Lock()
		_, revoked := s.revoked[token]
		_, exists := s.accounts[userID]
		s.mu.Unlock()
		if revoked || !exists {
			return errTokenInvalid
		}

		c.Set(userIDKey, userID)
		c.Set(common.TokenKey, token)
		return next(c)
	}
}

func (s *Server) bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return errMalformedPayload
	}
	return c.Validate(v)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Grade    string `json:"grade"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	if s.byEmail(req.Email) != nil {
		s.mu.Unlock()
		return errUserExists
	}
	u := s.addLocked(models.User{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
		Grade: req.Grade,
	}, req.Password)
	s.mu.Unlock()

	return s.authResponse(c, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	a := s.byEmail(req.Email)
	s.mu.Unlock()
	if a == nil || a.password != req.Password {
		return errInvalidLogin
	}

	return s.authResponse(c, http.StatusOK, a.user)
}

func (s *Server) authResponse(c echo.Context, status int, u models.User) error {
	tok, err := GenerateToken(u.ID, s.secret, s.ttl)
	if err != nil {
		return err
	}
	return c.JSON(status, models.AuthResponse{Token: tok, User: &u})
}

func (s *Server) logout(c echo.Context) error {
	s.RevokeToken(c.Get(common.TokenKey).(string))
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (s *Server) me(c echo.Context) error {
	u := s.current(c)
	return c.JSON(http.StatusOK, models.UserResponse{User: &u})
}

type profileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Grade  *string `json:"grade"`
	Avatar *string `json:"avatar"`
}

func (s *Server) updateProfile(c echo.Context) error {
	var req profileRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[c.Get(userIDKey).(string)]
	if req.Email != nil {
		if other := s.byEmail(*req.Email); other != nil && other != a {
			return errEmailTaken
		}
	}
	a.user = a.user.Merge(models.UserPatch{
		Name:   req.Name,
		Email:  req.Email,
		Grade:  req.Grade,
		Avatar: req.Avatar,
	})

	u := a.user
	return c.JSON(http.StatusOK, models.UserResponse{User: &u})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (s *Server) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[c.Get(userIDKey).(string)]
	if a.password != req.CurrentPassword {
		return errWrongPassword
	}
	a.password = req.NewPassword
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byEmail(req.Email)
	if a == nil {
		return errUserNotFound
	}
	for tok, id := range s.resetTokens {
		if id == a.user.ID {
			delete(s.resetTokens, tok)
		}
	}
	s.resetTokens[uuid.NewString()] = a.user.ID
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset email sent"})
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (s *Server) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tok := c.Param("token")
	id, ok := s.resetTokens[tok]
	if !ok {
		return errResetTokenBad
	}
	delete(s.resetTokens, tok)
	s.accounts[id].password = req.Password
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset"})
}

func (s *Server) current(c echo.Context) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[c.Get(userIDKey).(string)].user
}

// byEmail must be called with s.mu held.
func (s *Server) byEmail(email string) *account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, email) {
			return a
		}
	}
	return nil
}

// Gate holds requests at a route until released.
type Gate struct {
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
	relOnce   sync.Once
}

func newGate() *Gate {
	return &Gate{entered: make(chan struct{}), release: make(chan struct{})}
}

// Entered is closed once the first request reached the gate.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

func (g *Gate) Release() {
	g.relOnce.Do(func() { close(g.release) })
}

func (g *Gate) wait(ctx context.Context) error {
	g.enterOnce.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var httpErr *echo.HTTPError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	case errors.As(err, &verrs):
		code = http.StatusBadRequest
		message = validationMessage(verrs[0])
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, models.ErrorResponse{Message: message})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please include a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
