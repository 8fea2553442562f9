package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
)

type AccessMode string

const (
	// AccessAnyone lets whoever holds the locator resolve the share.
	AccessAnyone AccessMode = "anyone"
	// AccessUsers additionally requires a logged-in user from the list.
	AccessUsers AccessMode = "users"
)

type AccessPolicy struct {
	Mode      AccessMode `json:"mode"`
	Usernames []string   `json:"usernames,omitempty"`
}

// Anyone is the default open policy.
func Anyone() AccessPolicy { return AccessPolicy{Mode: AccessAnyone} }

// OnlyUsers restricts a share to the given usernames.
func OnlyUsers(usernames ...string) AccessPolicy {
	return AccessPolicy{Mode: AccessUsers, Usernames: usernames}
}

func (p AccessPolicy) Validate() error {
	switch p.Mode {
	case AccessAnyone:
		return nil
	case AccessUsers:
		if len(p.Usernames) == 0 {
			return fmt.Errorf("%w: user-restricted share needs at least one username", common.ErrInvalidInput)
		}
		for _, u := range p.Usernames {
			if strings.TrimSpace(u) == "" || strings.Contains(u, ",") {
				return fmt.Errorf("%w: bad username %q", common.ErrInvalidInput, u)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown access mode %q", common.ErrInvalidInput, p.Mode)
	}
}

// SharedRecord is a resolved share.
type SharedRecord struct {
	Record       Record
	CreatorLabel string
	ExpiresAt    time.Time
}
