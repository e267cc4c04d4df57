package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
)

const dateLayout = "2006-01-02 15:04"

func (a *app) dashboard(_ context.Context, _ []string) error {
	u := a.auth.CurrentUser()
	if u == nil {
		fmt.Fprintln(a.out, "Not signed in. Run: authcli login -u <username>")
		return nil
	}
	fmt.Fprintf(a.out, "Welcome, %s (%s)\n\n", displayName(u), u.Initials())
	return writeProfile(a.out, u)
}

func (a *app) status(ctx context.Context, _ []string) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	u := a.auth.CurrentUser()
	if u == nil {
		fmt.Fprintln(tw, "Signed in:\tno")
		fmt.Fprintf(tw, "API:\t%s\n", a.client.BaseURL())
		return nil
	}
	fmt.Fprintln(tw, "Signed in:\tyes")
	fmt.Fprintf(tw, "User:\t%s\n", u.Username)
	fmt.Fprintf(tw, "API:\t%s\n", a.client.BaseURL())

	tok, err := a.client.TokenSource(ctx).Token()
	if err != nil {
		return err
	}
	claims, err := token.Inspect(tok.AccessToken)
	if err != nil {
		fmt.Fprintln(tw, "Access token:\tunreadable")
		return nil
	}
	now := time.Now()
	switch {
	case claims.ExpiresAt.IsZero():
		fmt.Fprintln(tw, "Access token:\tno expiry")
	case claims.Expired(now):
		fmt.Fprintf(tw, "Access token:\texpired at %s (refreshed on next call)\n", claims.ExpiresAt.Local().Format(dateLayout))
	default:
		fmt.Fprintf(tw, "Access token:\tvalid for %s\n", claims.Remaining(now).Round(time.Second))
	}
	fmt.Fprintf(tw, "Refresh token:\t%s\n", yesNo(tok.RefreshToken != ""))
	return nil
}

func writeProfile(out io.Writer, p *users.Profile) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Username:\t%s\n", p.Username)
	fmt.Fprintf(tw, "Name:\t%s\n", p.FullName())
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Roles:\t%s\n", strings.Join(p.DisplayRoles(), ", "))
	fmt.Fprintf(tw, "Enabled:\t%s\n", yesNo(p.Enabled))
	fmt.Fprintf(tw, "Member since:\t%s\n", formatTime(p.CreatedAt.Time))
	fmt.Fprintf(tw, "Last updated:\t%s\n", formatTime(p.UpdatedAt.Time))
	return tw.Flush()
}

func writePage(out io.Writer, page *users.Page) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES\tENABLED")
	for _, p := range page.Content {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Username, p.Email, strings.Join(p.DisplayRoles(), ","), yesNo(p.Enabled))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d of %d, %d users\n", page.Number+1, max(page.TotalPages, 1), page.TotalElements)
	return nil
}

func displayName(p *users.Profile) string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.Username
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
