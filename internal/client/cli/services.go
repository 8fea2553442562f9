package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/client/services"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// The interfaces below are the slices of internal/client/services the REPL
// calls. Tests substitute fakes.

type authService interface {
	Register(ctx context.Context, username string, secret []byte) (string, error)
	Login(ctx context.Context, username string, secret []byte) (*services.Session, error)
	Resume(ctx context.Context, encoded string) (*services.Session, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type vaultService interface {
	Add(ctx context.Context, s *services.Session, domain cryptox.KeyDomain, rec models.Record) (string, error)
	List(ctx context.Context, s *services.Session, domain cryptox.KeyDomain, filter models.ListFilter) (services.Listing, error)
	Reveal(ctx context.Context, s *services.Session, id string) (models.RecordView, error)
	ToggleFavorite(ctx context.Context, s *services.Session, id string) (bool, error)
	Delete(ctx context.Context, s *services.Session, id string) error
}

type rotationService interface {
	Rotate(ctx context.Context, s *services.Session, oldSecret, newSecret []byte) (services.RotationReport, error)
}

type recoveryService interface {
	Recover(ctx context.Context, username, token string, newSecret []byte) (services.RecoveryResult, error)
}

type shareService interface {
	Create(ctx context.Context, s *services.Session, rec models.Record, ttl time.Duration, policy models.AccessPolicy) (services.Locator, error)
	Resolve(ctx context.Context, locator string) (models.SharedRecord, error)
}

type gateService interface {
	Enroll(ctx context.Context, label string) error
	Disenroll(ctx context.Context) error
	Enrolled(ctx context.Context) (string, bool, error)
}

// session is what the REPL needs from *services.Session.
type session interface {
	Token() string
	Offline() bool
	Lock(ctx context.Context) error
	Logout(ctx context.Context) error
}
