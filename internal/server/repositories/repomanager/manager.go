package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/domainsalts"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/records"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/shares"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	WithTx(ctx context.Context, db *sql.DB, fn dbx.TxFunc) error
	Users(db dbx.DBTX) users.Repository
	DomainSalts(db dbx.DBTX) domainsalts.Repository
	Records(db dbx.DBTX) records.Repository
	Shares(db dbx.DBTX) shares.Repository
}
