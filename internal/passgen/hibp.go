package passgen

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
)

const DefaultBreachURL = "https://api.pwnedpasswords.com/range/"

// BreachChecker queries a k-anonymity range API. Only the first five hex
// characters of the password's SHA-1 leave the process.
type BreachChecker struct {
	BaseURL string
	Client  *http.Client
}

func NewBreachChecker() *BreachChecker {
	return &BreachChecker{BaseURL: DefaultBreachURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Count returns how many times pw appears in known breaches. Transport
// failures are common.ErrNetworkFailure.
func (b *BreachChecker) Count(ctx context.Context, pw string) (int, error) {
	sum := sha1.Sum([]byte(pw))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+prefix, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "sekure")
	req.Header.Set("Add-Padding", "true")

	resp, err := b.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: breach api returned %s", common.ErrNetworkFailure, resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		hash, count, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(hash, suffix) {
			continue
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return 0, fmt.Errorf("%w: bad count %q", common.ErrorInternal, count)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	return 0, nil
}
