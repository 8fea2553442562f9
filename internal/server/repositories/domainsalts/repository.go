package domainsalts

import "context"

type Repository interface {
	// GetOrCreate returns the salt stored for domain, storing candidate
	// first if there is none.
	GetOrCreate(ctx context.Context, domain string, candidate []byte) ([]byte, error)
}
