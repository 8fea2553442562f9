package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/passgen"
)

// Generate prints a password: generate [random|passphrase|pin] [n].
func (a *App) Generate(ctx context.Context, args []string) error {
	method := "random"
	if len(args) > 0 {
		method = args[0]
	}
	n := 0
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: bad count %q", common.ErrInvalidInput, args[1])
		}
		n = v
	}

	var (
		out string
		err error
	)
	switch method {
	case "random":
		o := passgen.DefaultOptions()
		if n > 0 {
			o.Length = n
		}
		out, err = a.gen.Password(o)
	case "passphrase":
		if n == 0 {
			n = 5
		}
		out, err = a.gen.Passphrase(n, "-")
	case "pin":
		if n == 0 {
			n = 6
		}
		out, err = a.gen.PIN(n)
	default:
		return fmt.Errorf("%w: unknown method %q", common.ErrInvalidInput, method)
	}
	if err != nil {
		return err
	}

	rep := passgen.Analyze(out)
	a.printf("%s\n(%.0f bits, %s, crack time %s)\n", out, rep.Entropy, rep.Score, rep.CrackTime)
	return nil
}

// warnWeak prints strength feedback for a typed password and checks it
// against known breaches. A failed breach lookup is only logged.
func (a *App) warnWeak(ctx context.Context, pw string) {
	rep := passgen.Analyze(pw)
	if rep.Score < passgen.Strong {
		a.printf("Warning: %s password.\n", rep.Score)
		for _, f := range rep.Feedback {
			a.printf("  - %s\n", f)
		}
	}

	if a.breaches == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := a.breaches.Count(ctx, pw)
	if err != nil {
		a.logger.Debug(ctx, "breach check failed", "error", err.Error())
		return
	}
	if n > 0 {
		a.printf("Warning: this password appears in %d known breaches.\n", n)
	}
}
