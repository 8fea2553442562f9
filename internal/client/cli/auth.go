package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// readNewSecret asks for a secret twice.
func (a *App) readNewSecret(prompt string) ([]byte, error) {
	secret, err := getPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret must not be empty", common.ErrInvalidInput)
	}
	again, err := getPassword(a.out, "Repeat")
	if err != nil {
		common.WipeByteArray(secret)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if string(secret) != string(again) {
		common.WipeByteArray(secret)
		return nil, fmt.Errorf("%w: secrets do not match", common.ErrInvalidInput)
	}
	return secret, nil
}

// Register creates an account and shows its recovery token once.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	secret, err := a.readNewSecret("Master secret")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	token, err := a.auth.Register(ctx, userName, secret)
	if err != nil {
		return err
	}
	a.printf("Account created.\nRecovery token (shown once, store it offline):\n\n  %s\n\n", token)
	return nil
}

// Login authenticates and makes the new session current.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	secret, err := getPassword(a.out, "Master secret")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	if a.active != nil {
		_ = a.active.Lock(ctx)
	}
	s, err := a.auth.Login(ctx, userName, secret)
	if err != nil {
		return err
	}
	a.setSession(s, userName)

	if s.Offline() {
		a.printf("Logged in offline (read-only).\n")
	} else {
		a.printf("Logged in.\n")
	}
	return a.Export(ctx)
}

// Export prints the shell line that lets a later process resume the session.
func (a *App) Export(context.Context) error {
	a.printf("To resume this session from another process:\n  export %s=%s\n", common.SessionEnvVar, a.active.Token())
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	err := a.active.Lock(ctx)
	a.setSession(nil, "")
	a.printf("Locked.\n")
	return err
}

func (a *App) Logout(ctx context.Context) error {
	err := a.active.Logout(ctx)
	a.setSession(nil, "")
	a.printf("Logged out.\n")
	return err
}

// Passwd changes the master secret and re-encrypts the personal vault.
func (a *App) Passwd(ctx context.Context) error {
	oldSecret, err := getPassword(a.out, "Current master secret")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldSecret)
	newSecret, err := a.readNewSecret("New master secret")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newSecret)

	report, err := a.rotation.Rotate(ctx, a.session, oldSecret, newSecret)
	if report.Total > 0 || report.Migrated > 0 {
		a.printf("Re-encrypted %d of %d records.\n", report.Migrated, report.Total)
	}
	for _, f := range report.Failures {
		a.printf("  %s: %s\n", f.ID, describe(f.Err))
	}
	if err != nil {
		return err
	}
	a.printf("Master secret changed.\n")
	return nil
}

// Recover resets a lost master secret with the recovery token. Existing
// records cannot be decrypted afterwards.
func (a *App) Recover(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	token, err := getSimpleText(a.reader, "Recovery token", a.out)
	if err != nil {
		return err
	}
	confirm, err := getSimpleText(a.reader,
		"Records encrypted with the lost secret will be unreadable. Type 'yes' to continue", a.out)
	if err != nil {
		return err
	}
	if confirm != "yes" {
		return common.ErrCancelled
	}
	secret, err := a.readNewSecret("New master secret")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	res, err := a.recovery.Recover(ctx, userName, token, secret)
	if err != nil {
		return err
	}
	a.printf("Account recovered. Log in with the new secret.\nNew recovery token (shown once):\n\n  %s\n\n", res.RecoveryToken)
	return nil
}

// Enroll registers a strong-auth credential, or removes it with "off".
func (a *App) Enroll(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "off" {
		if err := a.gate.Disenroll(ctx); err != nil {
			return err
		}
		a.printf("Strong authentication disabled.\n")
		return nil
	}

	label := "this device"
	if len(args) > 0 {
		label = args[0]
	}
	if err := a.gate.Enroll(ctx, label); err != nil {
		return err
	}
	a.printf("Strong authentication enabled for %q.\n", label)
	return nil
}
