package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Recover(ctx context.Context) error
	Open(ctx context.Context, args []string) error
	Generate(ctx context.Context, args []string) error

	List(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Passwd(ctx context.Context) error
	Enroll(ctx context.Context, args []string) error
	Export(ctx context.Context) error
	Lock(ctx context.Context) error
	Logout(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, recover, open <link>, generate [random|passphrase|pin] [n], exit"
	helpLoggedIn  = "Available commands: (l)ist [domain] [-s text] [-t tag] [-f], add [domain], show <id>, fav <id>, delete <id>, share <id> [ttl] [user...], " +
		"open <link>, generate [random|passphrase|pin] [n], passwd, enroll [label|off], export, lock, logout, exit"
)

// describe turns a command error into one line for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrDecryptionFailure):
		return "Could not decrypt. Log in again; if this persists the data is damaged."
	case errors.Is(err, common.ErrKeyUnavailable):
		return "Key unavailable. Log in again."
	case errors.Is(err, common.ErrNetworkFailure):
		return "Server unavailable. Try again later."
	case errors.Is(err, common.ErrShareExpired):
		return "This share has expired."
	case errors.Is(err, common.ErrShareDenied):
		return "You are not allowed to open this share."
	case errors.Is(err, common.ErrShareInvalid):
		return "This share link is not valid."
	case errors.Is(err, common.ErrCancelled):
		return "Cancelled."
	case errors.Is(err, common.ErrAuthFailed):
		return "Verification failed."
	case errors.Is(err, common.ErrRotationInProgress):
		return "A secret change is already running."
	case errors.Is(err, common.ErrorUnauthorized):
		return "Wrong username or secret."
	default:
		return "Error: " + err.Error()
	}
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit"/"quit". Commands that need a session are refused while logged out.
// Errors are reported to the user and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sekure %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "recover":
			err = a.Recover(ctx)
		case "open":
			err = a.Open(ctx, args)
		case "generate", "gen":
			err = a.Generate(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "l", "list", "add", "show", "fav", "delete", "share", "passwd", "enroll", "export", "lock", "logout":
			if !a.isLoggedIn() {
				printlnFn("Please log in first.")
				continue
			}
			err = dispatchSession(ctx, a, cmd, args)

		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err != nil {
			printlnFn(describe(err))
		}
	}
}

func dispatchSession(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "l", "list":
		return a.List(ctx, args)
	case "add":
		return a.Add(ctx, args)
	case "show":
		return a.Show(ctx, args)
	case "fav":
		return a.Favorite(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "share":
		return a.Share(ctx, args)
	case "passwd":
		return a.Passwd(ctx)
	case "enroll":
		return a.Enroll(ctx, args)
	case "export":
		return a.Export(ctx)
	case "lock":
		return a.Lock(ctx)
	default:
		return a.Logout(ctx)
	}
}
