package client

import (
	"context"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// Client is the backing-store contract. Every payload it moves is opaque
// ciphertext, a salt, a verifier or a hash.
type Client interface {
	Ping(ctx context.Context) error

	Register(ctx context.Context, req api.RegisterRequest) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	// Login exchanges a verifier for an access token, kept by the client.
	Login(ctx context.Context, username string, verifier []byte) (api.TokenResponse, error)
	SetToken(token string)
	Token() string

	DomainSalt(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error)

	ListRecords(ctx context.Context, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error)
	GetRecord(ctx context.Context, id string) (models.EncryptedRecord, error)
	PutRecord(ctx context.Context, rec models.EncryptedRecord) error
	DeleteRecord(ctx context.Context, id string) error

	BeginRotation(ctx context.Context, oldVerifier []byte) (pendingSalt []byte, err error)
	CommitRotation(ctx context.Context, salt, newVerifier []byte) error

	StartRecovery(ctx context.Context, username, recoveryToken string) (api.RecoveryResponse, error)
	CompleteRecovery(ctx context.Context, ticket string, verifier []byte) error

	CreateShare(ctx context.Context, req api.CreateShareRequest) (api.CreateShareResponse, error)
	GetShare(ctx context.Context, id string) (api.Share, error)
}
