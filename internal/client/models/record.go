// Package models defines the client-side vault data types.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const maxTagLen = 64

// Record is the plaintext form of a credential. It exists only in memory.
// Tags and the favorite flag are sealed with the rest, so the backing store
// cannot filter on them.
type Record struct {
	Title    string   `json:"title"`
	Username string   `json:"username,omitempty"`
	URL      string   `json:"url,omitempty"`
	Password string   `json:"password,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
}

// Validate requires a title; everything else is optional. Tags must be
// non-empty, comma free and at most 64 bytes.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: record title is required", common.ErrInvalidInput)
	}
	for _, t := range r.Tags {
		if t == "" || len(t) > maxTagLen || strings.Contains(t, ",") {
			return fmt.Errorf("%w: bad tag %q", common.ErrInvalidInput, t)
		}
	}
	return nil
}

// ParseTags splits a comma separated list, trimming blanks and dropping
// duplicates while keeping the first spelling.
func ParseTags(s string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	return tags
}

// HasTag compares case-insensitively.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ListFilter narrows a listing after decryption. The zero value matches
// everything.
type ListFilter struct {
	// Search is a case-insensitive substring of title, username or URL.
	Search        string
	Tag           string
	FavoritesOnly bool
}

func (f ListFilter) Matches(r Record) bool {
	if f.FavoritesOnly && !r.Favorite {
		return false
	}
	if f.Tag != "" && !r.HasTag(f.Tag) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	for _, field := range []string{r.Title, r.Username, r.URL} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Wipe blanks the sensitive fields. Go strings are immutable, so this only
// drops the references.
func (r *Record) Wipe() {
	r.Password = ""
	r.Notes = ""
}

// EncryptedRecord is what the backing store and the local cache hold.
type EncryptedRecord struct {
	ID         string
	Domain     cryptox.KeyDomain
	Ciphertext []byte
	Nonce      []byte
	UpdatedAt  time.Time
}

func (e EncryptedRecord) Sealed() cryptox.Sealed {
	return cryptox.Sealed{Ciphertext: e.Ciphertext, Nonce: e.Nonce}
}

// RecordView pairs a decrypted record with its id and domain.
type RecordView struct {
	ID     string
	Domain cryptox.KeyDomain
	Record Record
}
