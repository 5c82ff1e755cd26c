package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/eduportal/internal/client/client"
	"github.com/dmitrijs2005/eduportal/internal/client/config"
	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/eduportal/internal/client/session"
	"github.com/dmitrijs2005/eduportal/internal/client/storage"
	"github.com/dmitrijs2005/eduportal/internal/logging"
)

// Session is the read/operate surface of the session manager used by the
// commands. *session.Manager implements it.
type Session interface {
	Start(ctx context.Context)
	Login(ctx context.Context, creds models.Credentials) session.Result
	Register(ctx context.Context, r models.Registration) session.Result
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, p models.UserPatch) session.Result
	ChangePassword(ctx context.Context, p models.PasswordChange) session.Result
	ForgotPassword(ctx context.Context, email string) session.Result
	ResetPassword(ctx context.Context, resetToken, password string) session.Result
	ClearError()
	Snapshot() session.State
	TokenExpiry() (time.Time, bool)
}

var _ Session = (*session.Manager)(nil)

type App struct {
	session Session
	reader  *bufio.Reader
	out     io.Writer
	log     logging.Logger
	closers []func()
}

// NewApp builds an App over an already started session.
func NewApp(s Session, in io.Reader, out io.Writer, log logging.Logger) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{session: s, reader: bufio.NewReader(in), out: newLockedWriter(out), log: log}
}

// Open wires the local database, the credential store, the auth client and
// the session manager from cfg, and runs startup reconciliation.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", cfg.DatabasePath, "error", err)
		return nil, err
	}

	store, err := openStore(ctx, db, cfg.StorePassphrase)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	apiClient, err := client.NewHTTPClient(client.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  store,
		Logger:  log,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	mgr := session.NewManager(apiClient, store, log)
	a := NewApp(mgr, in, out, log)
	a.closers = append(a.closers, func() { _ = db.Close() }, mgr.Close)

	apiClient.SetOnUnauthorized(a.onUnauthorized)
	mgr.Start(ctx)
	return a, nil
}

func openStore(ctx context.Context, db *sql.DB, passphrase string) (credentials.Repository, error) {
	var store credentials.Repository = credentials.NewSQLiteRepository(db)
	if passphrase == "" {
		return store, nil
	}
	sealed, err := credentials.NewSealedRepository(ctx, store, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed credential store: %w", err)
	}
	return sealed, nil
}

// onUnauthorized runs after the auth client dropped the stored credentials
// on a 401: the session is reconciled against the now empty store.
func (a *App) onUnauthorized(ctx context.Context) {
	wasAuthenticated := a.session.Snapshot().IsAuthenticated
	a.session.Start(ctx)
	if wasAuthenticated {
		fmt.Fprintln(a.out, "Your session has expired. Please log in again.")
	}
}

// Close releases the session manager and the database in reverse order of
// acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) isLoggedIn() bool {
	return a.session.Snapshot().IsAuthenticated
}

func (a *App) getStatus() string {
	s := a.session.Snapshot()
	switch s.Status() {
	case session.StatusAuthenticated:
		return fmt.Sprintf("(%s)", s.User.Email)
	case session.StatusFailed:
		return "(error)"
	case session.StatusResolving:
		return "(...)"
	default:
		return ""
	}
}
