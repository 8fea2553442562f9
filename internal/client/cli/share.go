package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
)

const defaultShareTTL = 24 * time.Hour

// Share publishes a record as a link: share <id> [ttl] [user...]. Listing
// users restricts the share to them.
func (a *App) Share(ctx context.Context, args []string) error {
	id, err := needID(args, "share <id> [ttl] [user...]")
	if err != nil {
		return err
	}
	ttl := defaultShareTTL
	if len(args) > 1 {
		if ttl, err = time.ParseDuration(args[1]); err != nil {
			return fmt.Errorf("%w: bad ttl %q", common.ErrInvalidInput, args[1])
		}
	}
	policy := models.Anyone()
	if len(args) > 2 {
		policy = models.OnlyUsers(args[2:]...)
	}

	view, err := a.vault.Reveal(ctx, a.session, id)
	if err != nil {
		return err
	}
	defer view.Record.Wipe()

	loc, err := a.shares.Create(ctx, a.session, view.Record, ttl, policy)
	if err != nil {
		return err
	}
	defer loc.Key.Wipe()

	a.printf("Share link (valid for %s):\n\n  %s\n\n", ttl, loc.String())
	return nil
}

// Open resolves a share link. It works without logging in.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: open <link>", common.ErrInvalidInput)
	}
	shared, err := a.shares.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	r := shared.Record
	a.printf("Shared by %s, expires %s\nTitle:    %s\nUsername: %s\nURL:      %s\nPassword: %s\n",
		shared.CreatorLabel, shared.ExpiresAt.Local().Format(time.RFC1123), r.Title, r.Username, r.URL, r.Password)
	if r.Notes != "" {
		a.printf("Notes:\n%s\n", r.Notes)
	}
	return nil
}
