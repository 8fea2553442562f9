package services

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const sharePathPrefix = "/s/"

// Locator addresses a share. ID is what the backing store sees; Key lives
// only in the URL fragment, which user agents do not send.
type Locator struct {
	Base string
	ID   string
	Key  cryptox.DerivedKey
}

func (l Locator) String() string {
	return strings.TrimRight(l.Base, "/") + sharePathPrefix + url.PathEscape(l.ID) +
		"#" + base64.RawURLEncoding.EncodeToString(l.Key.Export())
}

// Redacted renders the locator without its key, for logs.
func (l Locator) Redacted() string {
	return strings.TrimRight(l.Base, "/") + sharePathPrefix + url.PathEscape(l.ID)
}

// ParseLocator splits a share URL. A missing or malformed fragment is
// common.ErrShareInvalid.
func ParseLocator(raw string) (Locator, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %v", common.ErrShareInvalid, err)
	}

	i := strings.LastIndex(u.Path, sharePathPrefix)
	if i < 0 {
		return Locator{}, fmt.Errorf("%w: not a share link", common.ErrShareInvalid)
	}
	id := u.Path[i+len(sharePathPrefix):]
	if id == "" || strings.Contains(id, "/") {
		return Locator{}, fmt.Errorf("%w: missing share id", common.ErrShareInvalid)
	}

	if u.Fragment == "" {
		return Locator{}, fmt.Errorf("%w: link has no key", common.ErrShareInvalid)
	}
	raw32, err := base64.RawURLEncoding.DecodeString(u.Fragment)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: malformed key", common.ErrShareInvalid)
	}
	defer common.WipeByteArray(raw32)
	key, err := cryptox.NewDerivedKey(cryptox.ShareLink(id), raw32)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: malformed key", common.ErrShareInvalid)
	}

	base := *u
	base.Path = u.Path[:i]
	base.RawPath = ""
	base.Fragment = ""
	base.RawQuery = ""
	return Locator{Base: base.String(), ID: id, Key: key}, nil
}
