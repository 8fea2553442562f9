package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/passgen"
)

func parseDomain(args []string) (cryptox.KeyDomain, error) {
	if len(args) == 0 {
		return cryptox.Personal(), nil
	}
	return cryptox.ParseKeyDomain(args[0])
}

func needID(args []string, usage string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: usage: %s", common.ErrInvalidInput, usage)
	}
	return args[0], nil
}

const listUsage = "list [domain] [-s text] [-t tag] [-f]"

// parseListArgs splits list arguments into the domain and a filter:
// -s searches title, username and URL, -t picks a tag, -f keeps favorites.
func parseListArgs(args []string) (cryptox.KeyDomain, models.ListFilter, error) {
	var f models.ListFilter
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			f.FavoritesOnly = true
		case "-s", "-t":
			if i+1 == len(args) {
				return cryptox.KeyDomain{}, f, fmt.Errorf("%w: usage: %s", common.ErrInvalidInput, listUsage)
			}
			if args[i] == "-s" {
				f.Search = args[i+1]
			} else {
				f.Tag = args[i+1]
			}
			i++
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) > 1 {
		return cryptox.KeyDomain{}, f, fmt.Errorf("%w: usage: %s", common.ErrInvalidInput, listUsage)
	}
	domain, err := parseDomain(rest)
	return domain, f, err
}

func (a *App) List(ctx context.Context, args []string) error {
	domain, filter, err := parseListArgs(args)
	if err != nil {
		return err
	}
	listing, err := a.vault.List(ctx, a.session, domain, filter)
	if err != nil {
		return err
	}

	if len(listing.Records) == 0 {
		if filter == (models.ListFilter{}) {
			a.printf("No records in %s.\n", domain)
		} else {
			a.printf("No matching records in %s.\n", domain)
		}
	} else {
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUSERNAME\tURL\tTAGS")
		for _, v := range listing.Records {
			title := v.Record.Title
			if v.Record.Favorite {
				title = "* " + title
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, title, v.Record.Username, v.Record.URL, strings.Join(v.Record.Tags, ","))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if n := len(listing.Failures); n > 0 {
		a.printf("%d record(s) could not be opened:\n", n)
		for _, f := range listing.Failures {
			a.printf("  %s: %s\n", f.ID, describe(f.Err))
		}
	}
	return nil
}

// Favorite toggles the favorite mark of a record.
func (a *App) Favorite(ctx context.Context, args []string) error {
	id, err := needID(args, "fav <id>")
	if err != nil {
		return err
	}
	on, err := a.vault.ToggleFavorite(ctx, a.session, id)
	if err != nil {
		return err
	}
	if on {
		a.printf("Marked %s as favorite.\n", id)
	} else {
		a.printf("Unmarked %s.\n", id)
	}
	return nil
}

// readRecord prompts for every record field. The password can be typed or
// generated.
func (a *App) readRecord(ctx context.Context) (models.Record, error) {
	var rec models.Record
	var err error
	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Title", &rec.Title},
		{"Username", &rec.Username},
		{"URL", &rec.URL},
	} {
		if *f.dst, err = getSimpleText(a.reader, f.prompt, a.out); err != nil {
			return models.Record{}, err
		}
	}
	tags, err := getSimpleText(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return models.Record{}, err
	}
	rec.Tags = models.ParseTags(tags)

	pw, err := getPassword(a.out, "Password (empty to generate)")
	if err != nil {
		return models.Record{}, err
	}
	if len(pw) == 0 {
		generated, err := a.gen.Password(passgen.DefaultOptions())
		if err != nil {
			return models.Record{}, err
		}
		rec.Password = generated
		a.printf("Generated a %d character password.\n", len(generated))
	} else {
		rec.Password = string(pw)
		common.WipeByteArray(pw)
		a.warnWeak(ctx, rec.Password)
	}

	if rec.Notes, err = getMultiline(a.reader, "Notes", a.out); err != nil {
		return models.Record{}, err
	}
	return rec, rec.Validate()
}

var getMultiline = GetMultiline

func (a *App) Add(ctx context.Context, args []string) error {
	domain, err := parseDomain(args)
	if err != nil {
		return err
	}
	rec, err := a.readRecord(ctx)
	if err != nil {
		return err
	}
	defer rec.Wipe()

	id, err := a.vault.Add(ctx, a.session, domain, rec)
	if err != nil {
		return err
	}
	a.printf("Saved %s.\n", id)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := needID(args, "show <id>")
	if err != nil {
		return err
	}
	view, err := a.vault.Reveal(ctx, a.session, id)
	if err != nil {
		return err
	}
	defer view.Record.Wipe()

	r := view.Record
	a.printf("Title:    %s\nDomain:   %s\nUsername: %s\nURL:      %s\nPassword: %s\n", r.Title, view.Domain, r.Username, r.URL, r.Password)
	if len(r.Tags) > 0 {
		a.printf("Tags:     %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Favorite {
		a.printf("Favorite: yes\n")
	}
	if r.Notes != "" {
		a.printf("Notes:\n%s\n", r.Notes)
	}
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := needID(args, "delete <id>")
	if err != nil {
		return err
	}
	if err := a.vault.Delete(ctx, a.session, id); err != nil {
		return err
	}
	a.printf("Deleted %s.\n", id)
	return nil
}
