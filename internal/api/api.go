// Package api defines the JSON bodies exchanged between the client and the
// backing store. Byte fields travel as standard base64; none of them ever
// carries plaintext or key material.
package api

import (
	"crypto/sha256"
	"time"
)

// Routes.
const (
	PathUsers          = "/api/users"
	PathUserSalt       = "/api/users/{username}/salt"
	PathLogin          = "/api/login"
	PathDomainSalt     = "/api/salts/{domain}"
	PathRecords        = "/api/records"
	PathRecord         = "/api/records/{id}"
	PathRotate         = "/api/secret/rotate"
	PathCommit         = "/api/secret/commit"
	PathRecovery       = "/api/recovery"
	PathRecoveryFinish = "/api/recovery/complete"
	PathShares         = "/api/shares"
	PathShare          = "/api/shares/{id}"
	PathLive           = "/livez"
	PathReady          = "/readyz"
)

type RegisterRequest struct {
	Username          string `json:"username"`
	Salt              []byte `json:"salt"`
	Verifier          []byte `json:"verifier"`
	RecoveryTokenHash []byte `json:"recovery_token_hash"`
}

type SaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Record struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RecordList struct {
	Records []Record `json:"records"`
}

type PutRecordRequest struct {
	Domain     string `json:"domain"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
}

// RotateRequest proves knowledge of the current secret and asks for a
// pending salt.
type RotateRequest struct {
	Verifier []byte `json:"verifier"`
}

// CommitRequest makes the pending salt current together with the verifier
// derived from the new secret.
type CommitRequest struct {
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RecoveryRequest struct {
	Username      string `json:"username"`
	RecoveryToken string `json:"recovery_token"`
}

// RecoveryResponse carries the new salt and a short-lived ticket that
// authorises exactly one RecoveryCompleteRequest.
type RecoveryResponse struct {
	Ticket        string `json:"ticket"`
	Salt          []byte `json:"salt"`
	RecoveryToken string `json:"recovery_token"`
}

type RecoveryCompleteRequest struct {
	Ticket   string `json:"ticket"`
	Verifier []byte `json:"verifier"`
}

type AccessPolicy struct {
	Mode      string   `json:"mode"`
	Usernames []string `json:"usernames,omitempty"`
}

type CreateShareRequest struct {
	Ciphertext   []byte       `json:"ciphertext"`
	Nonce        []byte       `json:"nonce"`
	TTLSeconds   int64        `json:"ttl_seconds"`
	AccessPolicy AccessPolicy `json:"access_policy"`
}

type CreateShareResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Share struct {
	Ciphertext   []byte    `json:"ciphertext"`
	Nonce        []byte    `json:"nonce"`
	CreatorLabel string    `json:"creator_label"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// HashRecoveryToken is what the backing store persists and compares
// instead of the recovery token itself.
func HashRecoveryToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
