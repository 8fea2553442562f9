package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/google/uuid"
)

type fakeAccount struct {
	salt, verifier      []byte
	recoveryHash        []byte
	pendingSalt         []byte
	pendingRecoveryHash []byte
}

type fakeShare struct {
	share  api.Share
	policy api.AccessPolicy
}

// fakeBackend is an in-memory backing store with the server's semantics.
type fakeBackend struct {
	mu       sync.Mutex
	now      time.Time
	down     bool
	token    string
	current  string
	accounts map[string]*fakeAccount
	tokens   map[string]string
	records  map[string]map[string]models.EncryptedRecord
	salts    map[string][]byte
	shares   map[string]fakeShare
	tickets  map[string]string

	failPut        map[string]bool
	keepOnRecovery bool
	listEntered    chan struct{}
	listRelease    chan struct{}
	getShareCalls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		accounts: map[string]*fakeAccount{},
		tokens:   map[string]string{},
		records:  map[string]map[string]models.EncryptedRecord{},
		salts:    map[string][]byte{},
		shares:   map[string]fakeShare{},
		tickets:  map[string]string{},
		failPut:  map[string]bool{},
	}
}

func (f *fakeBackend) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeBackend) check() error {
	if f.down {
		return common.ErrNetworkFailure
	}
	return nil
}

func (f *fakeBackend) user() (string, error) {
	u, ok := f.tokens[f.token]
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return u, nil
}

func (f *fakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check()
}

func (f *fakeBackend) Register(_ context.Context, req api.RegisterRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if _, ok := f.accounts[req.Username]; ok {
		return common.ErrAlreadyExists
	}
	f.accounts[req.Username] = &fakeAccount{salt: req.Salt, verifier: req.Verifier, recoveryHash: req.RecoveryTokenHash}
	f.records[req.Username] = map[string]models.EncryptedRecord{}
	return nil
}

func (f *fakeBackend) GetSalt(_ context.Context, username string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	acc, ok := f.accounts[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return bytes.Clone(acc.salt), nil
}

func (f *fakeBackend) Login(_ context.Context, username string, verifier []byte) (api.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return api.TokenResponse{}, err
	}
	acc, ok := f.accounts[username]
	if !ok || subtle.ConstantTimeCompare(acc.verifier, verifier) != 1 {
		return api.TokenResponse{}, common.ErrorUnauthorized
	}
	tok := uuid.NewString()
	f.tokens[tok] = username
	f.token = tok
	return api.TokenResponse{AccessToken: tok, ExpiresAt: f.now.Add(time.Hour)}, nil
}

func (f *fakeBackend) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeBackend) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeBackend) DomainSalt(_ context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	salt, ok := f.salts[domain.String()]
	if !ok {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		f.salts[domain.String()] = salt
	}
	return bytes.Clone(salt), nil
}

func (f *fakeBackend) ListRecords(_ context.Context, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error) {
	if f.listEntered != nil {
		f.listEntered <- struct{}{}
		<-f.listRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	u, err := f.user()
	if err != nil {
		return nil, err
	}
	var out []models.EncryptedRecord
	for _, r := range f.records[u] {
		if r.Domain == domain {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetRecord(_ context.Context, id string) (models.EncryptedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return models.EncryptedRecord{}, err
	}
	u, err := f.user()
	if err != nil {
		return models.EncryptedRecord{}, err
	}
	r, ok := f.records[u][id]
	if !ok {
		return models.EncryptedRecord{}, common.ErrorNotFound
	}
	return r, nil
}

func (f *fakeBackend) PutRecord(_ context.Context, rec models.EncryptedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if f.failPut[rec.ID] {
		return fmt.Errorf("%w: injected", common.ErrNetworkFailure)
	}
	u, err := f.user()
	if err != nil {
		return err
	}
	f.records[u][rec.ID] = rec
	return nil
}

func (f *fakeBackend) DeleteRecord(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	u, err := f.user()
	if err != nil {
		return err
	}
	if _, ok := f.records[u][id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.records[u], id)
	return nil
}

func (f *fakeBackend) BeginRotation(_ context.Context, oldVerifier []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	u, err := f.user()
	if err != nil {
		return nil, err
	}
	acc := f.accounts[u]
	if subtle.ConstantTimeCompare(acc.verifier, oldVerifier) != 1 {
		return nil, common.ErrorUnauthorized
	}
	if acc.pendingSalt != nil && acc.pendingRecoveryHash == nil {
		return nil, common.ErrRotationInProgress
	}
	acc.pendingSalt = common.GenerateRandByteArray(cryptox.SaltSize)
	acc.pendingRecoveryHash = nil
	return bytes.Clone(acc.pendingSalt), nil
}

func (f *fakeBackend) CommitRotation(_ context.Context, salt, newVerifier []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	u, err := f.user()
	if err != nil {
		return err
	}
	acc := f.accounts[u]
	if acc.pendingSalt == nil || !bytes.Equal(acc.pendingSalt, salt) {
		return common.ErrInvalidInput
	}
	acc.salt, acc.verifier, acc.pendingSalt = salt, newVerifier, nil
	return nil
}

func (f *fakeBackend) StartRecovery(_ context.Context, username, recoveryToken string) (api.RecoveryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return api.RecoveryResponse{}, err
	}
	acc, ok := f.accounts[username]
	if !ok || subtle.ConstantTimeCompare(acc.recoveryHash, api.HashRecoveryToken(recoveryToken)) != 1 {
		return api.RecoveryResponse{}, common.ErrorUnauthorized
	}
	next, err := common.MakeRandHexString(recoveryTokenSize)
	if err != nil {
		return api.RecoveryResponse{}, err
	}
	acc.pendingSalt = common.GenerateRandByteArray(cryptox.SaltSize)
	acc.pendingRecoveryHash = api.HashRecoveryToken(next)
	ticket := uuid.NewString()
	f.tickets[ticket] = username
	return api.RecoveryResponse{Ticket: ticket, Salt: bytes.Clone(acc.pendingSalt), RecoveryToken: next}, nil
}

func (f *fakeBackend) CompleteRecovery(_ context.Context, ticket string, verifier []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	u, ok := f.tickets[ticket]
	if !ok {
		return common.ErrorUnauthorized
	}
	delete(f.tickets, ticket)
	acc := f.accounts[u]
	acc.salt, acc.verifier, acc.recoveryHash = acc.pendingSalt, verifier, acc.pendingRecoveryHash
	acc.pendingSalt, acc.pendingRecoveryHash = nil, nil
	if f.keepOnRecovery {
		return nil
	}
	for id, rec := range f.records[u] {
		if rec.Domain.IsPersonal() {
			delete(f.records[u], id)
		}
	}
	return nil
}

func (f *fakeBackend) CreateShare(_ context.Context, req api.CreateShareRequest) (api.CreateShareResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return api.CreateShareResponse{}, err
	}
	u, err := f.user()
	if err != nil {
		return api.CreateShareResponse{}, err
	}
	id := uuid.NewString()
	expires := f.now.Add(time.Duration(req.TTLSeconds) * time.Second)
	f.shares[id] = fakeShare{
		share: api.Share{
			Ciphertext:   req.Ciphertext,
			Nonce:        req.Nonce,
			CreatorLabel: u,
			ExpiresAt:    expires,
		},
		policy: req.AccessPolicy,
	}
	return api.CreateShareResponse{ID: id, ExpiresAt: expires}, nil
}

func (f *fakeBackend) GetShare(_ context.Context, id string) (api.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getShareCalls++
	if err := f.check(); err != nil {
		return api.Share{}, err
	}
	sh, ok := f.shares[id]
	if !ok {
		return api.Share{}, common.ErrShareInvalid
	}
	if !f.now.Before(sh.share.ExpiresAt) {
		delete(f.shares, id)
		return api.Share{}, common.ErrShareExpired
	}
	if sh.policy.Mode == string(models.AccessUsers) {
		u, err := f.user()
		if err != nil {
			return api.Share{}, common.ErrShareDenied
		}
		allowed := false
		for _, name := range sh.policy.Usernames {
			allowed = allowed || name == u
		}
		if !allowed {
			return api.Share{}, common.ErrShareDenied
		}
	}
	return sh.share, nil
}

// mutate lets tests corrupt stored data.
func (f *fakeBackend) mutate(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
