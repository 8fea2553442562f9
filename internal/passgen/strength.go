package passgen

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// GuessesPerSecond is the offline attacker assumed by CrackTime.
const GuessesPerSecond = 10_000_000_000

type Score int

const (
	VeryWeak Score = iota
	Weak
	Moderate
	Strong
	VeryStrong
)

func (s Score) String() string {
	switch s {
	case VeryWeak:
		return "very weak"
	case Weak:
		return "weak"
	case Moderate:
		return "moderate"
	case Strong:
		return "strong"
	default:
		return "very strong"
	}
}

// Distribution counts characters per class.
type Distribution struct {
	Lower, Upper, Digits, Symbols, Other int
}

// Report is the result of Analyze.
type Report struct {
	Entropy      float64
	Score        Score
	CrackTime    string
	Distribution Distribution
	Feedback     []string
}

var commonPatterns = []string{
	"12345", "qwerty", "password", "abcdef", "111111",
	"admin", "letmein", "welcome", "monkey", "dragon",
}

func isPunct(r rune) bool {
	return r < 128 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r)
}

func classify(pw string) Distribution {
	var d Distribution
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			d.Lower++
		case r >= 'A' && r <= 'Z':
			d.Upper++
		case r >= '0' && r <= '9':
			d.Digits++
		case isPunct(r):
			d.Symbols++
		default:
			d.Other++
		}
	}
	return d
}

// Entropy estimates bits as length times log2 of the pool implied by the
// classes present. Characters outside ASCII classes assume a pool of 128.
func Entropy(pw string) float64 {
	if pw == "" {
		return 0
	}
	d := classify(pw)
	pool := 0
	if d.Lower > 0 {
		pool += 26
	}
	if d.Upper > 0 {
		pool += 26
	}
	if d.Digits > 0 {
		pool += 10
	}
	if d.Symbols > 0 {
		pool += 32
	}
	if pool == 0 {
		pool = 128
	}
	bits := float64(len([]rune(pw))) * math.Log2(float64(pool))
	return math.Round(bits*100) / 100
}

func ScoreOf(entropy float64) Score {
	switch {
	case entropy < 28:
		return VeryWeak
	case entropy < 36:
		return Weak
	case entropy < 60:
		return Moderate
	case entropy < 80:
		return Strong
	default:
		return VeryStrong
	}
}

// CrackTime renders the expected brute-force time for entropy bits.
func CrackTime(entropy float64) string {
	if entropy <= 0 {
		return "instant"
	}
	seconds := math.Pow(2, entropy) / GuessesPerSecond
	const year = 365 * 24 * time.Hour

	switch {
	case seconds < 1:
		return "instant"
	case seconds < 60:
		return fmt.Sprintf("%.0f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.0f minutes", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.0f hours", seconds/3600)
	case seconds < year.Seconds():
		return fmt.Sprintf("%.0f days", seconds/86400)
	case seconds < year.Seconds()*1e3:
		return fmt.Sprintf("%.0f years", seconds/year.Seconds())
	case seconds < year.Seconds()*1e6:
		return fmt.Sprintf("%.0f thousand years", seconds/year.Seconds()/1e3)
	case seconds < year.Seconds()*1e9:
		return fmt.Sprintf("%.0f million years", seconds/year.Seconds()/1e6)
	default:
		return "longer than the age of the universe"
	}
}

func hasRun(pw string, n int) bool {
	r := []rune(pw)
	for i := 0; i+n <= len(r); i++ {
		same := true
		for j := 1; j < n; j++ {
			same = same && r[i+j] == r[i]
		}
		if same {
			return true
		}
	}
	return false
}

func hasSequence(pw string) bool {
	r := []rune(pw)
	for i := 0; i+2 < len(r); i++ {
		if r[i]+1 == r[i+1] && r[i+1]+1 == r[i+2] {
			return true
		}
	}
	return false
}

// Analyze scores pw and lists its weaknesses.
func Analyze(pw string) Report {
	d := classify(pw)
	e := Entropy(pw)
	rep := Report{Entropy: e, Score: ScoreOf(e), CrackTime: CrackTime(e), Distribution: d}

	n := len([]rune(pw))
	switch {
	case n < 8:
		rep.Feedback = append(rep.Feedback, "too short, use at least 12 characters")
	case n < 12:
		rep.Feedback = append(rep.Feedback, "consider at least 12 characters")
	}
	if d.Upper == 0 {
		rep.Feedback = append(rep.Feedback, "add uppercase letters")
	}
	if d.Lower == 0 {
		rep.Feedback = append(rep.Feedback, "add lowercase letters")
	}
	if d.Digits == 0 {
		rep.Feedback = append(rep.Feedback, "add digits")
	}
	if d.Symbols == 0 {
		rep.Feedback = append(rep.Feedback, "add symbols")
	}

	lower := strings.ToLower(pw)
	for _, p := range commonPatterns {
		if strings.Contains(lower, p) {
			rep.Feedback = append(rep.Feedback, fmt.Sprintf("avoid common patterns like %q", p))
			break
		}
	}
	if hasRun(pw, 3) {
		rep.Feedback = append(rep.Feedback, "avoid repeating a character three times in a row")
	}
	if hasSequence(pw) {
		rep.Feedback = append(rep.Feedback, "avoid sequences like abc or 123")
	}
	return rep
}
