// Package entropy produces nonces from the local CSPRNG, optionally mixed with
// supplementary bytes prefetched from an external randomness service.
//
// Mixing is XOR of a local draw with a prefetched chunk, so the output is at
// least as unpredictable as the local draw alone. The prefetch runs as a
// bounded producer; NextNonce only ever try-takes from it and never waits.
package entropy

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/sekure/internal/logging"
	"go.uber.org/atomic"
)

const (
	DefaultChunkSize = 32
	DefaultPoolSize  = 16
	DefaultInterval  = 30 * time.Second
	DefaultTimeout   = 5 * time.Second
)

// Fetcher retrieves n supplementary random bytes.
type Fetcher interface {
	Fetch(ctx context.Context, n int) ([]byte, error)
}

// Stats counts how nonces were produced and how the prefetcher fared.
type Stats struct {
	LocalOnly     int64
	Mixed         int64
	Fetched       int64
	FetchFailures int64
}

type Option func(*Source)

func WithFetcher(f Fetcher) Option            { return func(s *Source) { s.fetcher = f } }
func WithInterval(d time.Duration) Option     { return func(s *Source) { s.interval = d } }
func WithFetchTimeout(d time.Duration) Option { return func(s *Source) { s.timeout = d } }
func WithLogger(l logging.Logger) Option      { return func(s *Source) { s.logger = l } }
func WithLocalReader(r io.Reader) Option      { return func(s *Source) { s.local = r } }

// WithPool sets the chunk size and the number of chunks buffered.
func WithPool(chunkSize, poolSize int) Option {
	return func(s *Source) {
		s.chunkSize = chunkSize
		s.poolSize = poolSize
	}
}

// Source implements cryptox.NonceSource.
type Source struct {
	local     io.Reader
	fetcher   Fetcher
	pool      chan []byte
	chunkSize int
	poolSize  int
	interval  time.Duration
	timeout   time.Duration
	logger    logging.Logger

	localOnly     atomic.Int64
	mixed         atomic.Int64
	fetched       atomic.Int64
	fetchFailures atomic.Int64
}

func New(opts ...Option) *Source {
	s := &Source{
		local:     rand.Reader,
		chunkSize: DefaultChunkSize,
		poolSize:  DefaultPoolSize,
		interval:  DefaultInterval,
		timeout:   DefaultTimeout,
		logger:    logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.pool = make(chan []byte, s.poolSize)
	return s
}

// NextNonce returns size bytes. It fails only if the local generator fails.
func (s *Source) NextNonce(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("entropy: invalid nonce size %d", size)
	}

	out := make([]byte, size)
	if _, err := io.ReadFull(s.local, out); err != nil {
		return nil, fmt.Errorf("entropy: local generator: %w", err)
	}

	select {
	case chunk := <-s.pool:
		for i := 0; i < size && i < len(chunk); i++ {
			out[i] ^= chunk[i]
		}
		wipe(chunk)
		s.mixed.Inc()
	default:
		s.localOnly.Inc()
	}
	return out, nil
}

// Start runs the prefetch loop until ctx is done. Without a fetcher it
// returns immediately. A non-positive interval means DefaultInterval. Call
// it in its own goroutine.
func (s *Source) Start(ctx context.Context) {
	if s.fetcher == nil {
		return
	}

	interval := s.interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.refill(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refill fetches enough bytes to top the pool up. Errors are absorbed.
func (s *Source) refill(ctx context.Context) {
	missing := cap(s.pool) - len(s.pool)
	if missing == 0 {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.fetcher.Fetch(fctx, missing*s.chunkSize)
	if err != nil {
		s.fetchFailures.Inc()
		s.logger.Debug(ctx, "supplementary entropy fetch failed", "error", err.Error())
		return
	}
	defer wipe(data)

	for len(data) >= s.chunkSize {
		chunk := make([]byte, s.chunkSize)
		copy(chunk, data[:s.chunkSize])
		data = data[s.chunkSize:]

		select {
		case s.pool <- chunk:
			s.fetched.Inc()
		default:
			wipe(chunk)
			return
		}
	}
}

// Buffered reports how many supplementary chunks are waiting.
func (s *Source) Buffered() int {
	return len(s.pool)
}

func (s *Source) Stats() Stats {
	return Stats{
		LocalOnly:     s.localOnly.Load(),
		Mixed:         s.mixed.Load(),
		Fetched:       s.fetched.Load(),
		FetchFailures: s.fetchFailures.Load(),
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
