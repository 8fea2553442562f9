// Package cryptox composes the primitives behind the vault's zero-knowledge
// guarantee: PBKDF2 key derivation per trust domain, verifier derivation and
// AES-256-GCM sealing of opaque payloads.
//
// Keys never leave this package's callers in plaintext form on the wire:
// the backing store only sees salts, verifiers, nonces and ciphertext.
package cryptox
