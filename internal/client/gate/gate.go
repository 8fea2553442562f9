// Package gate puts an optional strong-auth prompt in front of decryption.
//
// With no credential enrolled, Guard always succeeds. Once a credential is
// enrolled, Guard asks the Authenticator to verify the user, then stays open
// for a grace window so back-to-back reveals do not prompt again.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/logging"
)

type Outcome int

const (
	Success Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Authenticator is the platform strong-auth service.
type Authenticator interface {
	Register(ctx context.Context, label string) (handle []byte, err error)
	Verify(ctx context.Context, handle []byte) (Outcome, error)
}

// Credential is an enrolled authenticator handle.
type Credential struct {
	Handle []byte
	Label  string
}

// CredentialStore persists the enrolled credential. Load returns ok=false
// when none is enrolled.
type CredentialStore interface {
	Load(ctx context.Context) (cred Credential, ok bool, err error)
	Save(ctx context.Context, cred Credential) error
	Remove(ctx context.Context) error
}

const DefaultGraceWindow = 60 * time.Second

type Gate struct {
	auth   Authenticator
	creds  CredentialStore
	grace  time.Duration
	logger logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	openedAt time.Time
}

func New(auth Authenticator, creds CredentialStore, grace time.Duration, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gate{auth: auth, creds: creds, grace: grace, logger: logger, now: time.Now}
}

// Guard returns nil when the caller may proceed, common.ErrCancelled when
// the user backed out, and common.ErrAuthFailed otherwise.
func (g *Gate) Guard(ctx context.Context) error {
	cred, ok, err := g.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load credential: %v", common.ErrAuthFailed, err)
	}
	if !ok {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.openedAt.IsZero() && g.now().Sub(g.openedAt) < g.grace {
		return nil
	}

	outcome, err := g.auth.Verify(ctx, cred.Handle)
	if ctx.Err() != nil {
		outcome = Cancelled
	}

	switch {
	case outcome == Cancelled:
		g.logger.Info(ctx, "verification cancelled by user")
		return common.ErrCancelled
	case outcome == Success && err == nil:
		g.openedAt = g.now()
		return nil
	default:
		if err != nil {
			g.logger.Warn(ctx, "verification failed", "error", err.Error())
		} else {
			g.logger.Warn(ctx, "verification failed")
		}
		return common.ErrAuthFailed
	}
}

// Enroll registers a new credential under label, replacing any existing one.
func (g *Gate) Enroll(ctx context.Context, label string) error {
	handle, err := g.auth.Register(ctx, label)
	if err != nil {
		if errors.Is(err, common.ErrCancelled) {
			return err
		}
		return fmt.Errorf("register credential: %w", err)
	}
	if err := g.creds.Save(ctx, Credential{Handle: handle, Label: label}); err != nil {
		return err
	}
	g.Close()
	return nil
}

// Disenroll removes the credential; Guard becomes a no-op.
func (g *Gate) Disenroll(ctx context.Context) error {
	g.Close()
	return g.creds.Remove(ctx)
}

// Enrolled reports the label of the enrolled credential, if any.
func (g *Gate) Enrolled(ctx context.Context) (string, bool, error) {
	cred, ok, err := g.creds.Load(ctx)
	return cred.Label, ok, err
}

// Close ends the current grace window. Called on lock.
func (g *Gate) Close() {
	g.mu.Lock()
	g.openedAt = time.Time{}
	g.mu.Unlock()
}
