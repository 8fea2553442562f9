package entropy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTTPFetcher downloads raw random bytes from a randomness service. The URL
// may contain the placeholder {n}, replaced with the requested byte count,
// e.g. "https://www.random.org/cgi-bin/randbyte?nbytes={n}&format=f".
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, n int) ([]byte, error) {
	url := strings.ReplaceAll(f.URL, "{n}", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entropy service returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	if err != nil {
		return nil, err
	}
	if len(data) < n {
		return nil, fmt.Errorf("entropy service returned %d of %d bytes", len(data), n)
	}
	return data, nil
}
