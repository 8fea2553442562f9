package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
)

// RecordService stores ciphertext records per owner and hands out the
// shared salts of group and child account domains.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager) *RecordService {
	return &RecordService{db: db, repomanager: m}
}

// recordDomain accepts every domain a vault record can live in. Share
// domains are excluded: share ciphertext goes through ShareService.
func recordDomain(s string) (cryptox.KeyDomain, error) {
	d, err := cryptox.ParseKeyDomain(s)
	if err != nil {
		return cryptox.KeyDomain{}, invalid("domain %q", s)
	}
	if d.Kind == cryptox.KindShareLink {
		return cryptox.KeyDomain{}, invalid("share domains hold no records")
	}
	return d, nil
}

func (s *RecordService) List(ctx context.Context, userID, domain string) ([]*models.Record, error) {
	d, err := recordDomain(domain)
	if err != nil {
		return nil, err
	}
	recs, err := s.repomanager.Records(s.db).List(ctx, userID, d.String())
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	return recs, nil
}

func (s *RecordService) Get(ctx context.Context, userID, id string) (*models.Record, error) {
	rec, err := s.repomanager.Records(s.db).Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error reading record: %w", err)
	}
	return rec, nil
}

// Put creates or replaces the record with rec.ID for its owner.
func (s *RecordService) Put(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec.ID == "" || len(rec.ID) > maxRecordIDLen {
		return nil, invalid("record id must be 1-%d bytes", maxRecordIDLen)
	}
	d, err := recordDomain(rec.Domain)
	if err != nil {
		return nil, err
	}
	if err := checkSealed(rec.Ciphertext, rec.Nonce); err != nil {
		return nil, err
	}
	rec.Domain = d.String()

	out, err := s.repomanager.Records(s.db).Upsert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("error storing record: %w", err)
	}
	return out, nil
}

func (s *RecordService) Delete(ctx context.Context, userID, id string) error {
	err := s.repomanager.Records(s.db).Delete(ctx, userID, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error deleting record: %w", err)
	}
	return err
}

// DomainSalt returns the salt of a group or child account domain, creating
// it on first use. The personal domain uses the account salt and share
// domains use random keys, so neither has one.
func (s *RecordService) DomainSalt(ctx context.Context, domain string) ([]byte, error) {
	d, err := cryptox.ParseKeyDomain(domain)
	if err != nil {
		return nil, invalid("domain %q", domain)
	}
	if d.Kind != cryptox.KindGroup && d.Kind != cryptox.KindChildAccount {
		return nil, invalid("domain %s has no shared salt", d)
	}

	salt, err := s.repomanager.DomainSalts(s.db).GetOrCreate(ctx, d.String(), common.GenerateRandByteArray(cryptox.SaltSize))
	if err != nil {
		return nil, fmt.Errorf("error reading domain salt: %w", err)
	}
	return salt, nil
}
