// Package passgen generates passwords, passphrases and PINs, and estimates
// how strong a password is.
//
// Randomness comes from a cryptox.NonceSource, so the generator draws from
// the same mixed entropy pool as the cipher when one is configured.
package passgen

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const (
	Lower   = "abcdefghijklmnopqrstuvwxyz"
	Upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits  = "0123456789"
	Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	passphraseSymbols = "!@#$%&*"

	MaxLength = 256
	MaxWords  = 64
)

//go:embed words.txt
var wordsFile string

var wordlist = strings.Fields(wordsFile)

// Options selects the character classes of a random password. Every enabled
// class appears at least once when the length allows.
type Options struct {
	Length  int
	Lower   bool
	Upper   bool
	Digits  bool
	Symbols bool
}

// DefaultOptions is a 20 character password drawing on every class.
func DefaultOptions() Options {
	return Options{Length: 20, Lower: true, Upper: true, Digits: true, Symbols: true}
}

type Generator struct {
	src cryptox.NonceSource
}

func New(src cryptox.NonceSource) *Generator {
	if src == nil {
		src = cryptox.SystemRandom{}
	}
	return &Generator{src: src}
}

// intn returns a uniform value in [0, n) by rejection sampling.
func (g *Generator) intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: intn(%d)", common.ErrInvalidInput, n)
	}
	limit := ^uint32(0) - ^uint32(0)%uint32(n)
	for {
		b, err := g.src.NextNonce(4)
		if err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(b)
		if v < limit {
			return int(v % uint32(n)), nil
		}
	}
}

func (g *Generator) pick(set string) (byte, error) {
	i, err := g.intn(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func shuffle[T any](g *Generator, s []T) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// Password returns a random password. With no class enabled it falls back to
// letters and digits.
func (g *Generator) Password(o Options) (string, error) {
	if o.Length < 1 || o.Length > MaxLength {
		return "", fmt.Errorf("%w: length must be between 1 and %d", common.ErrInvalidInput, MaxLength)
	}

	var classes []string
	for _, c := range []struct {
		on  bool
		set string
	}{{o.Lower, Lower}, {o.Upper, Upper}, {o.Digits, Digits}, {o.Symbols, Symbols}} {
		if c.on {
			classes = append(classes, c.set)
		}
	}
	if len(classes) == 0 {
		classes = []string{Lower + Upper + Digits}
	}
	charset := strings.Join(classes, "")

	out := make([]byte, 0, o.Length)
	for _, set := range classes {
		if len(out) == o.Length {
			break
		}
		c, err := g.pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < o.Length {
		c, err := g.pick(charset)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if err := shuffle(g, out); err != nil {
		return "", err
	}
	return string(out), nil
}

// Passphrase joins capitalised words with sep and appends a number and a
// symbol. Custom words take some of the slots; at least one word is always
// random.
func (g *Generator) Passphrase(words int, sep string, custom ...string) (string, error) {
	if words < 1 || words > MaxWords {
		return "", fmt.Errorf("%w: word count must be between 1 and %d", common.ErrInvalidInput, MaxWords)
	}

	picked := make([]string, 0, words+1)
	for _, w := range custom {
		if w = strings.TrimSpace(w); w != "" {
			picked = append(picked, capitalize(w))
		}
	}
	random := max(1, words-len(picked))
	for range random {
		i, err := g.intn(len(wordlist))
		if err != nil {
			return "", err
		}
		picked = append(picked, capitalize(wordlist[i]))
	}
	if err := shuffle(g, picked); err != nil {
		return "", err
	}

	n, err := g.intn(100)
	if err != nil {
		return "", err
	}
	sym, err := g.pick(passphraseSymbols)
	if err != nil {
		return "", err
	}
	picked = append(picked, strconv.Itoa(n)+string(sym))
	return strings.Join(picked, sep), nil
}

func (g *Generator) PIN(length int) (string, error) {
	if length < 1 || length > MaxLength {
		return "", fmt.Errorf("%w: length must be between 1 and %d", common.ErrInvalidInput, MaxLength)
	}
	out := make([]byte, length)
	for i := range out {
		c, err := g.pick(Digits)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	return string(out), nil
}

func capitalize(w string) string {
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
