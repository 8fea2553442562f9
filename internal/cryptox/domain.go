package cryptox

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
)

// DomainKind enumerates the trust domains a key can belong to.
type DomainKind uint8

const (
	KindPersonal DomainKind = iota + 1
	KindGroup
	KindChildAccount
	KindShareLink
)

var kindNames = map[DomainKind]string{
	KindPersonal:     "personal",
	KindGroup:        "group",
	KindChildAccount: "child",
	KindShareLink:    "share",
}

func (k DomainKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KeyDomain is the tagged variant Personal | Group(id) | ChildAccount(id) |
// ShareLink(id). The zero value is invalid.
type KeyDomain struct {
	Kind DomainKind
	ID   string
}

func Personal() KeyDomain              { return KeyDomain{Kind: KindPersonal} }
func Group(id string) KeyDomain        { return KeyDomain{Kind: KindGroup, ID: id} }
func ChildAccount(id string) KeyDomain { return KeyDomain{Kind: KindChildAccount, ID: id} }
func ShareLink(id string) KeyDomain    { return KeyDomain{Kind: KindShareLink, ID: id} }
func (d KeyDomain) IsPersonal() bool   { return d.Kind == KindPersonal }
func (d KeyDomain) IsZero() bool       { return d.Kind == 0 }

// String is the canonical storage form: "personal", "group:<id>",
// "child:<id>" or "share:<id>".
func (d KeyDomain) String() string {
	if d.Kind == KindPersonal {
		return kindNames[KindPersonal]
	}
	return d.Kind.String() + ":" + d.ID
}

// Validate reports ErrInvalidInput for unknown kinds, a personal domain with
// an id or any other domain without one.
func (d KeyDomain) Validate() error {
	if _, ok := kindNames[d.Kind]; !ok {
		return fmt.Errorf("%w: unknown key domain kind %d", common.ErrInvalidInput, d.Kind)
	}
	if d.Kind == KindPersonal && d.ID != "" {
		return fmt.Errorf("%w: personal domain takes no id", common.ErrInvalidInput)
	}
	if d.Kind != KindPersonal && d.ID == "" {
		return fmt.Errorf("%w: %s domain requires an id", common.ErrInvalidInput, d.Kind)
	}
	if strings.ContainsAny(d.ID, ":/") {
		return fmt.Errorf("%w: domain id %q contains a reserved character", common.ErrInvalidInput, d.ID)
	}
	return nil
}

// ParseKeyDomain is the inverse of KeyDomain.String.
func ParseKeyDomain(s string) (KeyDomain, error) {
	if s == kindNames[KindPersonal] {
		return Personal(), nil
	}
	name, id, ok := strings.Cut(s, ":")
	if !ok {
		return KeyDomain{}, fmt.Errorf("%w: malformed key domain %q", common.ErrInvalidInput, s)
	}
	for kind, n := range kindNames {
		if n == name && kind != KindPersonal {
			d := KeyDomain{Kind: kind, ID: id}
			if err := d.Validate(); err != nil {
				return KeyDomain{}, err
			}
			return d, nil
		}
	}
	return KeyDomain{}, fmt.Errorf("%w: unknown key domain %q", common.ErrInvalidInput, s)
}
