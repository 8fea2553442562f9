package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/logging"
	"github.com/dmitrijs2005/sekure/internal/server/blobstore"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// NewShare is a share as submitted by its creator.
type NewShare struct {
	Ciphertext []byte
	Nonce      []byte
	TTL        time.Duration
	AccessMode string
	Usernames  []string
}

// ShareService keeps share ciphertext until it expires. Expiry is enforced
// on every read and by Purge; the key that opens a share is never sent here.
//
// An expired share is purged to a tombstone that keeps only its id and
// expiry, so its link keeps answering "expired" for the retention period.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	maxTTL      time.Duration
	retention   time.Duration
	logger      logging.Logger
	now         func() time.Time
}

// NewShareService builds the service. A nil blobs keeps ciphertext inline
// in the database.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, cfg *config.Config, logger logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		maxTTL:      cfg.MaxShareTTL,
		retention:   cfg.ShareRetention,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ShareService) checkNew(in NewShare) error {
	if err := checkSealed(in.Ciphertext, in.Nonce); err != nil {
		return err
	}
	if in.TTL < time.Second || (s.maxTTL > 0 && in.TTL > s.maxTTL) {
		return invalid("ttl must be between 1s and %s", s.maxTTL)
	}
	switch in.AccessMode {
	case models.AccessAnyone:
		if len(in.Usernames) > 0 {
			return invalid("usernames are only allowed with mode %q", models.AccessUsers)
		}
	case models.AccessUsers:
		if len(in.Usernames) == 0 {
			return invalid("mode %q needs at least one username", models.AccessUsers)
		}
		for _, u := range in.Usernames {
			if err := checkUsername(u); err != nil {
				return err
			}
		}
	default:
		return invalid("unknown access mode %q", in.AccessMode)
	}
	return nil
}

// Create stores a share for creator and returns it with its id and expiry.
func (s *ShareService) Create(ctx context.Context, creatorID, creatorLabel string, in NewShare) (*models.Share, error) {
	if err := s.checkNew(in); err != nil {
		return nil, err
	}

	share := &models.Share{
		ID:               uuid.NewString(),
		CreatorID:        creatorID,
		CreatorLabel:     creatorLabel,
		Nonce:            in.Nonce,
		AccessMode:       in.AccessMode,
		AllowedUsernames: in.Usernames,
		ExpiresAt:        s.now().Add(in.TTL).UTC(),
	}

	if s.blobs == nil {
		share.Ciphertext = in.Ciphertext
	} else {
		share.BlobKey = blobstore.NewKey()
		if err := s.blobs.Put(ctx, share.BlobKey, in.Ciphertext); err != nil {
			return nil, fmt.Errorf("error storing share blob: %w", err)
		}
	}

	out, err := s.repomanager.Shares(s.db).Create(ctx, share)
	if err != nil {
		if share.BlobKey != "" {
			if delErr := s.blobs.Delete(ctx, share.BlobKey); delErr != nil {
				s.logger.Warn(ctx, "orphaned share blob", "blob_key", share.BlobKey, "error", delErr)
			}
		}
		return nil, fmt.Errorf("error creating share: %w", err)
	}

	s.logger.Info(ctx, "share created", "share_id", out.ID, "mode", out.AccessMode, "expires_at", out.ExpiresAt)
	return out, nil
}

// Get returns the share with its ciphertext. reader is the name of the
// authenticated caller, or empty for an anonymous one.
//
// Errors: common.ErrorNotFound for an unknown id, common.ErrShareExpired
// past the expiry (the content is purged), common.ErrShareDenied when the
// policy excludes reader.
func (s *ShareService) Get(ctx context.Context, id, reader string) (*models.Share, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Shares(s.db)
	share, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error reading share: %w", err)
	}

	if share.PurgedAt != nil {
		return nil, common.ErrShareExpired
	}
	if now := s.now(); share.Expired(now) {
		s.purge(ctx, share, now)
		return nil, common.ErrShareExpired
	}
	if !share.Allows(reader) {
		return nil, common.ErrShareDenied
	}

	if share.BlobKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("share %s is in a blob store that is not configured", share.ID)
		}
		share.Ciphertext, err = s.blobs.Get(ctx, share.BlobKey)
		if err != nil {
			return nil, fmt.Errorf("error reading share blob: %w", err)
		}
	}
	return share, nil
}

func (s *ShareService) purge(ctx context.Context, share *models.Share, now time.Time) {
	if err := s.repomanager.Shares(s.db).Purge(ctx, share.ID, now.UTC()); err != nil {
		s.logger.Warn(ctx, "expired share not purged", "share_id", share.ID, "error", err)
		return
	}
	s.deleteBlobs(ctx, []string{share.BlobKey})
}

func (s *ShareService) deleteBlobs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "share blob not removed", "blob_key", key, "error", err)
		}
	}
}

// Purge drops the content and blob of every expired share and returns how
// many shares it purged. Tombstones whose expiry is older than the retention
// period are deleted outright.
func (s *ShareService) Purge(ctx context.Context) (int, error) {
	now := s.now().UTC()
	repo := s.repomanager.Shares(s.db)

	keys, err := repo.PurgeExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("error purging shares: %w", err)
	}
	s.deleteBlobs(ctx, keys)

	if s.retention > 0 {
		n, err := repo.DeleteTombstones(ctx, now.Add(-s.retention))
		if err != nil {
			return len(keys), fmt.Errorf("error deleting share tombstones: %w", err)
		}
		if n > 0 {
			s.logger.Debug(ctx, "share tombstones deleted", "count", n)
		}
	}
	return len(keys), nil
}

// RunPurger calls Purge every interval until ctx is done.
func (s *ShareService) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Purge(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "share purge failed", "error", err)
			}
		}
	}
}
