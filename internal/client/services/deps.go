// Package services contains the client's application services: account
// authentication and sessions, the vault, master-secret rotation, account
// recovery and share links.
package services

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/client"
	"github.com/dmitrijs2005/sekure/internal/client/gate"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/records"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/logging"
)

// DefaultSessionTTL bounds how long persisted session keys stay usable.
const DefaultSessionTTL = 12 * time.Hour

// Deps bundles what every service needs. One Deps is built at startup and
// shared.
type Deps struct {
	Client     client.Client
	DB         *sql.DB
	Cipher     *cryptox.Cipher
	Nonces     cryptox.NonceSource
	Gate       *gate.Gate
	Logger     logging.Logger
	SessionTTL time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Nonces == nil {
		d.Nonces = cryptox.SystemRandom{}
	}
	if d.Cipher == nil {
		d.Cipher = cryptox.NewCipher(d.Nonces)
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = DefaultSessionTTL
	}
	return d
}

func (d Deps) metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(d.DB)
}

func (d Deps) records() records.Repository {
	return records.NewSQLiteRepository(d.DB)
}
