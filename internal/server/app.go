// Package server wires configuration, storage and services together and
// runs the REST server with the share purger until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sekure/internal/logging"
	"github.com/dmitrijs2005/sekure/internal/server/blobstore"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/dmitrijs2005/sekure/internal/server/httpapi"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/memory"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sekure/internal/server/services"
	"golang.org/x/sync/errgroup"
)

// MemoryDSN selects the in-process store instead of PostgreSQL. Nothing
// survives a restart.
const MemoryDSN = "memory"

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.HTTPServer
	shares *services.ShareService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, rm, err := openStorage(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(ctx, c, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	shares := services.NewShareService(db, rm, blobs, c, logger)
	svc := httpapi.Services{
		Users:    services.NewUserService(db, rm, c),
		Secrets:  services.NewSecretService(db, rm, c),
		Recovery: services.NewRecoveryService(db, rm, c),
		Records:  services.NewRecordService(db, rm),
		Shares:   shares,
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewHTTPServer(c.ListenAddr, logger, svc, c.SecretKey),
		shares: shares,
	}, nil
}

func openStorage(ctx context.Context, c *config.Config, logger logging.Logger) (*sql.DB, repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == MemoryDSN {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		return nil, memory.New(), nil
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		closeDB(db)
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, rm, nil
}

// openBlobStore returns nil when share ciphertext stays in the database.
func openBlobStore(ctx context.Context, c *config.Config, logger logging.Logger) (blobstore.Store, error) {
	if c.BlobsInline() {
		return nil, nil
	}

	s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		Endpoint:  c.S3BaseEndpoint,
		Region:    c.S3Region,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		Bucket:    c.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	logger.Info(ctx, "share blobs go to object storage", "bucket", c.S3Bucket)
	return s, nil
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}

// Run serves until ctx is cancelled or the HTTP server fails, then stops
// the purger and closes the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	defer closeDB(app.db)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.http.Run(ctx)
	})

	if app.config.PurgeInterval > 0 {
		g.Go(func() error {
			app.shares.RunPurger(ctx, app.config.PurgeInterval)
			return nil
		})
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}
