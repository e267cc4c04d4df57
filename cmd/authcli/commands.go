package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/users"
)

var errUsage = errors.New("usage")

const usage = `usage: authcli <command> [flags]

commands:
  login     -u <username> [-p <password>]
  register  -u <username> -email <email> -first <name> -last <name> [-p <password>]
  logout
  dashboard (default)
  status
  users     me | get <id> | list [-page n] [-size n] [-sort field] [-dir asc|desc] | search <query> | delete <id>
`

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"login":     a.login,
		"register":  a.register,
		"logout":    a.logout,
		"dashboard": a.dashboard,
		"status":    a.status,
		"users":     a.usersCmd,
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.dashboard(ctx, nil)
	}
	cmd, ok := a.commands()[args[0]]
	if !ok {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	return cmd(ctx, args[1:])
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *username == "" {
		*username = a.prompt("username")
	}
	if *password == "" {
		*password = a.prompt("password")
	}

	u, err := a.auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", u.Username)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	var req authmodel.RegisterRequest
	fs.StringVar(&req.Username, "u", "", "username")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Password, "p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if req.Password == "" {
		req.Password = a.prompt("password")
	}

	u, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and signed in as %s\n", u.Username)
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if !a.auth.IsAuthenticated() {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	// the local session is gone either way; a failed revoke is only reported
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "Signed out locally (server: %s)\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) usersCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "me":
		p, err := a.users.Me(ctx)
		if err != nil {
			return err
		}
		return writeProfile(a.out, p)
	case "get", "delete":
		if len(rest) != 1 {
			return fmt.Errorf("users %s needs exactly one id", sub)
		}
		id, err := uuid.Parse(rest[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", rest[0], err)
		}
		if sub == "delete" {
			if err := a.users.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted user %s\n", id)
			return nil
		}
		p, err := a.users.Get(ctx, id)
		if err != nil {
			return err
		}
		return writeProfile(a.out, p)
	case "list", "search":
		fs := a.flags("users " + sub)
		var opts users.ListOptions
		var dir string
		fs.IntVar(&opts.Page, "page", 0, "page number, from 0")
		fs.IntVar(&opts.Size, "size", 0, "page size")
		fs.StringVar(&opts.SortBy, "sort", "", "sort field")
		fs.StringVar(&dir, "dir", "", "sort direction: asc or desc")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		opts.Direction = users.SortDirection(strings.ToLower(dir))

		var page *users.Page
		var err error
		if sub == "search" {
			page, err = a.users.Search(ctx, strings.Join(fs.Args(), " "), opts)
		} else {
			page, err = a.users.List(ctx, opts)
		}
		if err != nil {
			return err
		}
		return writePage(a.out, page)
	default:
		fmt.Fprint(a.out, usage)
		return errUsage
	}
}

func (a *app) prompt(label string) string {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(line)
}
