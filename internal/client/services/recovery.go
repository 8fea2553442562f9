package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/client/sessionstore"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// RecoveryResult is the outcome of a successful recovery. RecoveryToken
// replaces the one that was just spent.
type RecoveryResult struct {
	Salt          []byte
	RecoveryToken string
}

// RecoveryService restores access to an account whose master secret is
// lost. It does not migrate data: the backing store drops the personal
// records sealed under the old key, and no copy of that key is kept here.
type RecoveryService struct {
	deps Deps
}

func NewRecoveryService(d Deps) *RecoveryService {
	return &RecoveryService{deps: d.withDefaults()}
}

func (r *RecoveryService) Recover(ctx context.Context, username, recoveryToken string, newSecret []byte) (RecoveryResult, error) {
	if username == "" || recoveryToken == "" {
		return RecoveryResult{}, fmt.Errorf("%w: username and recovery token are required", common.ErrInvalidInput)
	}

	resp, err := r.deps.Client.StartRecovery(ctx, username, recoveryToken)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("start recovery: %w", err)
	}

	verifier, err := cryptox.DeriveVerifier(newSecret, resp.Salt)
	if err != nil {
		return RecoveryResult{}, err
	}
	if err := r.deps.Client.CompleteRecovery(ctx, resp.Ticket, verifier); err != nil {
		return RecoveryResult{}, fmt.Errorf("complete recovery: %w", err)
	}

	// Anything cached locally belongs to the old key generation, including
	// session keys a still-open shell could resume with.
	meta := r.deps.metadata()
	if err := errors.Join(
		metadata.ForgetAccount(ctx, meta),
		r.deps.records().Clear(ctx),
		sessionstore.ForgetAll(ctx, r.deps.DB),
	); err != nil {
		r.deps.Logger.Warn(ctx, "failed to clear local data after recovery", "error", err.Error())
	}
	if err := metadata.SaveAccount(ctx, meta, metadata.Account{
		Username: username, Salt: resp.Salt, Verifier: verifier,
	}); err != nil {
		r.deps.Logger.Warn(ctx, "failed to store offline login data", "error", err.Error())
	}

	r.deps.Logger.Info(ctx, "account recovered", "username", username)
	return RecoveryResult{Salt: resp.Salt, RecoveryToken: resp.RecoveryToken}, nil
}
