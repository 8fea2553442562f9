package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"go.uber.org/atomic"
)

// RecordFailure is one record that could not be migrated.
type RecordFailure struct {
	ID  string
	Err error
}

// RotationReport summarises a master secret change.
type RotationReport struct {
	Total    int
	Migrated int
	Failures []RecordFailure
}

func (r RotationReport) err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("record %s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// RotationService changes the master secret and re-encrypts the personal
// vault under the new key. One rotation runs at a time per service.
type RotationService struct {
	deps    Deps
	running atomic.Bool
}

func NewRotationService(d Deps) *RotationService {
	return &RotationService{deps: d.withDefaults()}
}

// Rotate runs the migration. Until the pending salt is requested nothing
// changes anywhere. From then on record submissions are individual: a
// failed record is reported and the rest continue, with no rollback. A
// record that does not decrypt under the current key is reported the same
// way and left untouched. The
// session switches to the new key only after the backing store commits the
// new salt. The returned error joins the per-record failures, if any.
func (r *RotationService) Rotate(ctx context.Context, s *Session, oldSecret, newSecret []byte) (RotationReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return RotationReport{}, common.ErrRotationInProgress
	}
	defer r.running.Store(false)

	if err := s.requireOnline(); err != nil {
		return RotationReport{}, err
	}
	log := r.deps.Logger.With("username", s.Username)

	// 1-2: enumerate and decrypt under the live key.
	list, err := r.deps.Client.ListRecords(ctx, cryptox.Personal())
	if err != nil {
		return RotationReport{}, fmt.Errorf("list records: %w", err)
	}
	oldKey, err := s.Key(ctx, cryptox.Personal())
	if err != nil {
		return RotationReport{}, err
	}
	report := RotationReport{Total: len(list)}
	readable := make([]models.EncryptedRecord, 0, len(list))
	plain := make([]models.Record, 0, len(list))
	defer func() {
		for i := range plain {
			plain[i].Wipe()
		}
	}()
	for _, enc := range list {
		var rec models.Record
		if err := r.deps.Cipher.DecryptJSON(enc.Sealed(), oldKey, &rec); err != nil {
			// sealed under an older key, nothing to migrate
			log.Warn(ctx, "record cannot be opened, left as is", "id", enc.ID, "error", err.Error())
			report.Failures = append(report.Failures, RecordFailure{ID: enc.ID, Err: err})
			continue
		}
		readable = append(readable, enc)
		plain = append(plain, rec)
	}

	oldSalt, err := r.deps.Client.GetSalt(ctx, s.Username)
	if err != nil {
		return RotationReport{}, fmt.Errorf("get salt: %w", err)
	}
	oldVerifier, err := cryptox.DeriveVerifier(oldSecret, oldSalt)
	if err != nil {
		return RotationReport{}, err
	}

	// 3: the backing store checks the old secret and hands out a new salt.
	newSalt, err := r.deps.Client.BeginRotation(ctx, oldVerifier)
	if err != nil {
		return RotationReport{}, fmt.Errorf("begin rotation: %w", err)
	}

	// 4
	newKey, err := cryptox.DeriveKey(newSecret, newSalt)
	if err != nil {
		return RotationReport{}, err
	}
	defer newKey.Wipe()
	newVerifier, err := cryptox.DeriveVerifier(newSecret, newSalt)
	if err != nil {
		return RotationReport{}, err
	}

	// 5-6: per record, fresh nonce each.
	migrated := make([]models.EncryptedRecord, 0, len(readable))
	for i, enc := range readable {
		sealed, err := r.deps.Cipher.EncryptJSON(plain[i], newKey)
		if err != nil {
			report.Failures = append(report.Failures, RecordFailure{ID: enc.ID, Err: err})
			continue
		}
		enc.Ciphertext, enc.Nonce = sealed.Ciphertext, sealed.Nonce
		if err := r.deps.Client.PutRecord(ctx, enc); err != nil {
			log.Warn(ctx, "record migration failed", "id", enc.ID, "error", err.Error())
			report.Failures = append(report.Failures, RecordFailure{ID: enc.ID, Err: err})
			continue
		}
		migrated = append(migrated, enc)
		report.Migrated++
	}

	// 7
	if err := r.deps.Client.CommitRotation(ctx, newSalt, newVerifier); err != nil {
		log.Error(ctx, "rotation commit failed", "migrated", report.Migrated, "error", err.Error())
		return report, fmt.Errorf("commit rotation: %w", err)
	}

	if err := s.swapPersonal(ctx, newKey); err != nil {
		return report, err
	}
	oldKey.Wipe()

	if err := metadata.SaveAccount(ctx, r.deps.metadata(), metadata.Account{
		Username: s.Username, Salt: newSalt, Verifier: newVerifier,
	}); err != nil {
		log.Warn(ctx, "failed to update offline login data", "error", err.Error())
	}
	if err := r.deps.records().ReplaceDomain(ctx, cryptox.Personal(), migrated); err != nil {
		log.Warn(ctx, "failed to refresh record cache", "error", err.Error())
	}

	log.Info(ctx, "master secret rotated", "total", report.Total, "migrated", report.Migrated)
	return report, report.err()
}
