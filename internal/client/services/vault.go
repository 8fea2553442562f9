package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/google/uuid"
)

// VaultService encrypts records before they leave the process and decrypts
// them after they come back. Every decrypt failure reaches the caller,
// either as an error or in a Listing.
type VaultService struct {
	deps Deps
	now  func() time.Time
}

func NewVaultService(d Deps) *VaultService {
	return &VaultService{deps: d.withDefaults(), now: time.Now}
}

func (v *VaultService) seal(ctx context.Context, s *Session, id string, domain cryptox.KeyDomain, rec models.Record) (models.EncryptedRecord, error) {
	if err := rec.Validate(); err != nil {
		return models.EncryptedRecord{}, err
	}
	key, err := s.Key(ctx, domain)
	if err != nil {
		return models.EncryptedRecord{}, err
	}
	sealed, err := v.deps.Cipher.EncryptJSON(rec, key)
	if err != nil {
		return models.EncryptedRecord{}, err
	}
	return models.EncryptedRecord{
		ID:         id,
		Domain:     domain,
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		UpdatedAt:  v.now().UTC(),
	}, nil
}

func (v *VaultService) open(ctx context.Context, s *Session, enc models.EncryptedRecord) (models.RecordView, error) {
	key, err := s.Key(ctx, enc.Domain)
	if err != nil {
		return models.RecordView{}, err
	}
	return v.decrypt(enc, key)
}

func (v *VaultService) decrypt(enc models.EncryptedRecord, key cryptox.DerivedKey) (models.RecordView, error) {
	var rec models.Record
	if err := v.deps.Cipher.DecryptJSON(enc.Sealed(), key, &rec); err != nil {
		return models.RecordView{}, fmt.Errorf("record %s: %w", enc.ID, err)
	}
	return models.RecordView{ID: enc.ID, Domain: enc.Domain, Record: rec}, nil
}

// Add stores a new record in domain and returns its id.
func (v *VaultService) Add(ctx context.Context, s *Session, domain cryptox.KeyDomain, rec models.Record) (string, error) {
	id := uuid.NewString()
	if err := v.put(ctx, s, id, domain, rec); err != nil {
		return "", err
	}
	return id, nil
}

// Update replaces the contents of an existing record.
func (v *VaultService) Update(ctx context.Context, s *Session, id string, domain cryptox.KeyDomain, rec models.Record) error {
	return v.put(ctx, s, id, domain, rec)
}

func (v *VaultService) put(ctx context.Context, s *Session, id string, domain cryptox.KeyDomain, rec models.Record) error {
	if err := s.requireOnline(); err != nil {
		return err
	}
	if domain.Kind == cryptox.KindShareLink {
		return fmt.Errorf("%w: records cannot live in a share domain", common.ErrInvalidInput)
	}
	enc, err := v.seal(ctx, s, id, domain, rec)
	if err != nil {
		return err
	}
	if err := v.deps.Client.PutRecord(ctx, enc); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	if err := v.deps.records().Upsert(ctx, enc); err != nil {
		v.deps.Logger.Warn(ctx, "failed to cache record", "id", id, "error", err.Error())
	}
	return nil
}

// fetch lists a domain from the backing store, refreshing the local cache,
// or reads the cache when the store is unreachable.
func (v *VaultService) fetch(ctx context.Context, s *Session, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error) {
	cache := v.deps.records()
	if s.offline {
		return cache.ListByDomain(ctx, domain)
	}

	list, err := v.deps.Client.ListRecords(ctx, domain)
	if errors.Is(err, common.ErrNetworkFailure) {
		v.deps.Logger.Warn(ctx, "backing store unreachable, listing cached records", "domain", domain.String())
		return cache.ListByDomain(ctx, domain)
	}
	if err != nil {
		return nil, err
	}
	if err := cache.ReplaceDomain(ctx, domain, list); err != nil {
		v.deps.Logger.Warn(ctx, "failed to refresh record cache", "error", err.Error())
	}
	return list, nil
}

// Listing is the readable part of a domain plus the records that could not
// be opened, such as ones sealed under a secret lost to recovery.
type Listing struct {
	Records  []models.RecordView
	Failures []RecordFailure
}

// List returns the records of domain that match filter, with secret fields
// blanked. Use Reveal for the full record. A record that fails to decrypt is
// reported in Failures and does not hide the others.
func (v *VaultService) List(ctx context.Context, s *Session, domain cryptox.KeyDomain, filter models.ListFilter) (Listing, error) {
	list, err := v.fetch(ctx, s, domain)
	if err != nil || len(list) == 0 {
		return Listing{}, err
	}
	key, err := s.Key(ctx, domain)
	if err != nil {
		return Listing{}, err
	}

	out := Listing{Records: make([]models.RecordView, 0, len(list))}
	for _, enc := range list {
		view, err := v.decrypt(enc, key)
		if err != nil {
			v.deps.Logger.Warn(ctx, "record cannot be opened", "id", enc.ID, "error", err.Error())
			out.Failures = append(out.Failures, RecordFailure{ID: enc.ID, Err: err})
			continue
		}
		if !filter.Matches(view.Record) {
			continue
		}
		view.Record.Wipe()
		out.Records = append(out.Records, view)
	}
	return out, nil
}

// ToggleFavorite flips the favorite flag of record id and returns the new
// state. The record is re-sealed in place; the strong-auth gate is not
// involved.
func (v *VaultService) ToggleFavorite(ctx context.Context, s *Session, id string) (bool, error) {
	if err := s.requireOnline(); err != nil {
		return false, err
	}
	enc, err := v.get(ctx, s, id)
	if err != nil {
		return false, err
	}
	view, err := v.open(ctx, s, enc)
	if err != nil {
		return false, err
	}
	defer view.Record.Wipe()

	view.Record.Favorite = !view.Record.Favorite
	if err := v.put(ctx, s, id, enc.Domain, view.Record); err != nil {
		return false, err
	}
	return view.Record.Favorite, nil
}

// Reveal passes the strong-auth gate and returns the full record.
func (v *VaultService) Reveal(ctx context.Context, s *Session, id string) (models.RecordView, error) {
	if v.deps.Gate != nil {
		if err := v.deps.Gate.Guard(ctx); err != nil {
			return models.RecordView{}, err
		}
	}

	enc, err := v.get(ctx, s, id)
	if err != nil {
		return models.RecordView{}, err
	}
	return v.open(ctx, s, enc)
}

func (v *VaultService) get(ctx context.Context, s *Session, id string) (models.EncryptedRecord, error) {
	cache := v.deps.records()
	if s.offline {
		return cache.GetByID(ctx, id)
	}
	enc, err := v.deps.Client.GetRecord(ctx, id)
	if errors.Is(err, common.ErrNetworkFailure) {
		return cache.GetByID(ctx, id)
	}
	return enc, err
}

func (v *VaultService) Delete(ctx context.Context, s *Session, id string) error {
	if err := s.requireOnline(); err != nil {
		return err
	}
	if err := v.deps.Client.DeleteRecord(ctx, id); err != nil {
		return err
	}
	return v.deps.records().DeleteByID(ctx, id)
}
