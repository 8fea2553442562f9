package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/client"
	"github.com/dmitrijs2005/sekure/internal/client/config"
	"github.com/dmitrijs2005/sekure/internal/client/gate"
	"github.com/dmitrijs2005/sekure/internal/client/localdb"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/client/services"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/entropy"
	"github.com/dmitrijs2005/sekure/internal/filex"
	"github.com/dmitrijs2005/sekure/internal/logging"
	"github.com/dmitrijs2005/sekure/internal/passgen"
	"go.uber.org/atomic"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	out    io.Writer
	reader *bufio.Reader

	entropy  *entropy.Source
	auth     authService
	vault    vaultService
	rotation rotationService
	recovery recoveryService
	shares   shareService
	gate     gateService
	gen      *passgen.Generator
	breaches *passgen.BreachChecker

	// session is handed to the services; active is the same value seen
	// through the session interface.
	session  *services.Session
	active   session
	userName string
	mode     atomic.String
	offline  atomic.Bool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, logging.ParseLevel(c.LogLevel))

	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	db, err := localdb.Open(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err.Error())
		return nil, err
	}

	opts := []entropy.Option{entropy.WithInterval(c.EntropyInterval), entropy.WithLogger(logger)}
	if c.EntropyURL != "" {
		opts = append(opts, entropy.WithFetcher(&entropy.HTTPFetcher{
			URL:    c.EntropyURL,
			Client: &http.Client{Timeout: c.RequestTimeout},
		}))
	}
	src := entropy.New(opts...)

	g := gate.New(
		gate.NewTerminalAuthenticator(os.Stdout),
		gate.MetadataCredentials{Repo: metadata.NewSQLiteRepository(db)},
		c.GateGraceWindow,
		logger,
	)

	deps := services.Deps{
		Client:     client.NewHTTPClient(c.ServerURL, c.RequestTimeout),
		DB:         db,
		Cipher:     cryptox.NewCipher(src),
		Nonces:     src,
		Gate:       g,
		Logger:     logger,
		SessionTTL: c.SessionTTL,
	}

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		out:      os.Stdout,
		reader:   bufio.NewReader(os.Stdin),
		entropy:  src,
		auth:     services.NewAuthService(deps),
		vault:    services.NewVaultService(deps),
		rotation: services.NewRotationService(deps),
		recovery: services.NewRecoveryService(deps),
		shares:   services.NewShareService(deps, c.ShareBase()),
		gate:     g,
		gen:      passgen.New(src),
		breaches: passgen.NewBreachChecker(),
	}, nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) setMode(mode Mode) {
	if old := a.mode.Swap(string(mode)); old != string(mode) {
		a.logger.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

func (a *App) isLoggedIn() bool {
	return a.active != nil
}

func (a *App) setSession(s *services.Session, username string) {
	a.session, a.userName = s, username
	if s == nil {
		a.active = nil
		a.offline.Store(false)
		return
	}
	a.active = s
	a.offline.Store(s.Offline())
	if s.Offline() {
		a.setMode(ModeOffline)
	} else {
		a.setMode(ModeOnline)
	}
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if m := a.mode.Load(); m != "" {
		s = s + m
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// resume picks up the session exported by an earlier process, if any.
func (a *App) resume(ctx context.Context) {
	token := os.Getenv(common.SessionEnvVar)
	if token == "" {
		return
	}
	s, err := a.auth.Resume(ctx, token)
	if err != nil {
		a.logger.Info(ctx, "could not resume session", "error", err.Error())
		return
	}
	a.setSession(s, s.Username)
	a.printf("Resumed session for %s\n", s.Username)
}

// Run resumes or opens a session and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close(context.Background())

	go a.entropy.Start(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.EntropyInterval)

	a.printf("sekure (type 'help' for commands)\n")
	a.resume(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close leaves the session resumable; use lock or logout to end it.
func (a *App) Close(ctx context.Context) {
	_ = a.auth.Close(ctx)
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.auth.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else if !a.offline.Load() {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
