package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/eduportal/internal/client/client"
	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/common"
	"github.com/dmitrijs2005/eduportal/internal/logging"
)

// Store is the part of the credential store the Manager writes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetAll(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager is the single owner of the session State.
//
// Transitions are applied one at a time under mu and published to
// subscribers in the order they were applied. Remote calls and store I/O
// run outside mu. storeMu orders store writes together with the
// transition they belong to, so the store and State never diverge after a
// successful mutating operation.
type Manager struct {
	client client.Client
	store  Store
	log    logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	closed  bool

	// notifyMu serializes transitions with their delivery so subscribers
	// see snapshots in transition order. Lock order: storeMu, notifyMu, mu.
	notifyMu sync.Mutex
	storeMu  sync.Mutex

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(c client.Client, store Store, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:   c,
		store:    store,
		log:      log.With("component", "session"),
		now:      time.Now,
		state:    Initial(),
		subs:     map[int]func(State){},
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// Snapshot returns a copy of the current State.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Subscribe registers fn for every State published after this call and
// returns a function that removes it. fn runs on the goroutine that caused
// the transition. It may call Snapshot or unsubscribe, but must not call
// mutating Manager methods synchronously.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) dispatch(e Event) {
	m.dispatchIf(nil, e)
}

// dispatchIf applies e only when cond holds for the current State.
// notifyMu is taken before mu so subscribers can read the Manager while
// later transitions wait their turn.
func (m *Manager) dispatchIf(cond func(State) bool, e Event) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if cond != nil && !cond(m.state) {
		m.mu.Unlock()
		return false
	}
	m.state = Reduce(m.state, e)
	snapshot := m.state
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot.Clone())
	}
	return true
}

// Start runs startup reconciliation. Cached credentials are accepted
// before Start returns; the server check runs in the background and only
// ever refreshes the user record.
func (m *Manager) Start(ctx context.Context) {
	token, user, ok := m.loadCached(ctx)
	if !ok {
		m.dispatch(AuthFail{})
		return
	}

	if exp, ok := client.TokenExpiry(token); ok && m.now().After(exp) {
		m.log.Warn(ctx, "cached token has expired", "expired_at", exp)
	}

	m.dispatch(AuthSuccess{User: user, Token: token})
	m.log.Info(ctx, "restored cached session", "user_id", user.ID)

	m.mu.Lock()
	closed := m.closed
	if !closed {
		m.wg.Add(1)
	}
	m.mu.Unlock()
	if closed {
		return
	}
	go m.verify(token)
}

func (m *Manager) loadCached(ctx context.Context) (string, *models.User, bool) {
	token, err := m.store.Get(ctx, common.TokenKey)
	if err != nil {
		m.log.Error(ctx, "cannot read cached token", "error", err)
		return "", nil, false
	}
	rawUser, err := m.store.Get(ctx, common.UserKey)
	if err != nil {
		m.log.Error(ctx, "cannot read cached user", "error", err)
		return "", nil, false
	}
	if len(token) == 0 || len(rawUser) == 0 {
		return "", nil, false
	}

	user, err := models.UnmarshalUser(rawUser)
	if err != nil {
		m.log.Warn(ctx, "discarding corrupt cached session", "error", err)
		m.storeMu.Lock()
		if err := m.store.Delete(ctx, common.CredentialKeys...); err != nil {
			m.log.Error(ctx, "cannot remove corrupt cached session", "error", err)
		}
		m.storeMu.Unlock()
		return "", nil, false
	}
	return string(token), user, true
}

func (m *Manager) verify(token string) {
	defer m.wg.Done()
	ctx := m.bgCtx

	user, err := m.client.Me(ctx)
	if err != nil {
		m.log.Warn(ctx, "session verification failed, keeping cached session", "error", err)
		return
	}
	data, err := models.MarshalUser(user)
	if err != nil {
		m.log.Warn(ctx, "session verification returned unusable user", "error", err)
		return
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	applied := m.dispatchIf(func(s State) bool {
		return s.IsAuthenticated && s.Token == token
	}, AuthSuccess{User: user, Token: token})
	if !applied {
		m.log.Debug(ctx, "session changed during verification, result dropped")
		return
	}
	// The State already holds the verified user; the write must finish even
	// when Close races with it.
	if err := m.store.Set(context.WithoutCancel(ctx), common.UserKey, data); err != nil {
		m.log.Error(ctx, "cannot persist verified user", "error", err)
	}
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) Result {
	m.log.Info(ctx, "login attempt", "email", creds.Email)
	m.dispatch(AuthStart{})

	resp, err := m.client.Login(ctx, creds)
	return m.completeAuth(ctx, "login", resp, err, fallbackLogin)
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, r models.Registration) Result {
	m.log.Info(ctx, "register attempt", "email", r.Email)
	m.dispatch(AuthStart{})

	resp, err := m.client.Register(ctx, r)
	return m.completeAuth(ctx, "register", resp, err, fallbackRegister)
}

func (m *Manager) completeAuth(ctx context.Context, op string, resp *models.AuthResponse, err error, fallback string) Result {
	if err == nil && (resp == nil || resp.Token == "" || resp.User == nil) {
		err = client.ErrInvalidResponse
	}
	if err != nil {
		return m.authFailed(ctx, op, err, fallback)
	}

	data, err := models.MarshalUser(resp.User)
	if err != nil {
		return m.authFailed(ctx, op, err, fallback)
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if err := m.store.SetAll(ctx, map[string][]byte{
		common.TokenKey: []byte(resp.Token),
		common.UserKey:  data,
	}); err != nil {
		return m.authFailed(ctx, op, err, fallback)
	}

	m.dispatch(AuthSuccess{User: resp.User, Token: resp.Token})
	m.log.Info(ctx, op+" succeeded", "user_id", resp.User.ID)
	return succeeded()
}

func (m *Manager) authFailed(ctx context.Context, op string, err error, fallback string) Result {
	msg := failureMessage(err, fallback)
	m.log.Warn(ctx, op+" failed", "error", err)
	m.dispatch(AuthFail{Message: msg})
	return failed(msg)
}

// Logout ends the session. State becomes unauthenticated whatever the
// server answers. The removal of stored credentials is retried once; the
// returned error means they are still on disk and the next Start would
// restore them.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.client.Logout(ctx); err != nil {
		m.log.Warn(ctx, "logout request failed", "error", err)
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	wipeCtx := context.WithoutCancel(ctx)
	err := m.store.Delete(wipeCtx, common.CredentialKeys...)
	if err != nil {
		m.log.Warn(ctx, "cannot remove stored credentials, retrying", "error", err)
		err = m.store.Delete(wipeCtx, common.CredentialKeys...)
	}
	if err != nil {
		m.log.Error(ctx, "cannot remove stored credentials", "error", err)
		err = fmt.Errorf("remove stored credentials: %w", err)
	}

	m.dispatch(Logout{})
	m.log.Info(ctx, "logged out")
	return err
}

// UpdateProfile sends the present fields of p and merges the server's
// answer into the current user. Failures never touch State.
func (m *Manager) UpdateProfile(ctx context.Context, p models.UserPatch) Result {
	if m.Snapshot().User == nil {
		return failed(fallbackUpdate)
	}

	returned, err := m.client.UpdateProfile(ctx, p)
	if err != nil {
		m.log.Warn(ctx, "profile update failed", "error", err)
		return failed(serverMessageOr(err, fallbackUpdate))
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	current := m.Snapshot().User
	if current == nil {
		m.log.Warn(ctx, "session ended during profile update")
		return failed(fallbackUpdate)
	}
	merged := current.Merge(*returned)
	data, err := models.MarshalUser(&merged)
	if err == nil {
		err = m.store.Set(ctx, common.UserKey, data)
	}
	if err != nil {
		m.log.Error(ctx, "cannot persist updated profile", "error", err)
		return failed(fallbackUpdate)
	}

	m.dispatch(UpdateUser{Patch: *returned})
	m.log.Info(ctx, "profile updated", "user_id", merged.ID)
	return succeeded()
}

func (m *Manager) ChangePassword(ctx context.Context, p models.PasswordChange) Result {
	if err := m.client.ChangePassword(ctx, p); err != nil {
		m.log.Warn(ctx, "password change failed", "error", err)
		return failed(serverMessageOr(err, fallbackChangePassword))
	}
	m.log.Info(ctx, "password changed")
	return succeeded()
}

func (m *Manager) ForgotPassword(ctx context.Context, email string) Result {
	if err := m.client.ForgotPassword(ctx, email); err != nil {
		m.log.Warn(ctx, "password reset request failed", "email", email, "error", err)
		return failed(serverMessageOr(err, fallbackForgotPassword))
	}
	m.log.Info(ctx, "password reset requested", "email", email)
	return succeeded()
}

func (m *Manager) ResetPassword(ctx context.Context, resetToken, password string) Result {
	if err := m.client.ResetPassword(ctx, resetToken, password); err != nil {
		m.log.Warn(ctx, "password reset failed", "error", err)
		return failed(serverMessageOr(err, fallbackResetPassword))
	}
	m.log.Info(ctx, "password reset")
	return succeeded()
}

func (m *Manager) ClearError() {
	m.dispatch(ClearError{})
}

// TokenExpiry reports the expiry of the current token when it carries one.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	return client.TokenExpiry(m.Snapshot().Token)
}

// Close stops the background verification and waits for it to return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.bgCancel()
	m.wg.Wait()
}
