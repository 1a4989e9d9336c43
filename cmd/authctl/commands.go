package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

// command is one authctl subcommand.
type command struct {
	Description string
	Run         func(ctx context.Context, args []string) error
}

type admin struct {
	accounts ports.AccountRepository
	creds    ports.CredentialStore
	roles    ports.RoleAdmin
	in       io.Reader
	out      io.Writer
}

func (a *admin) commands() map[string]command {
	return map[string]command{
		"create-user":  {"Create an account", a.createUser},
		"set-password": {"Replace an account password", a.setPassword},
		"grant":        {"Grant a permission to a role, creating both if needed", a.grant},
		"assign":       {"Assign a role to an account", a.assign},
	}
}

// Execute dispatches args[0] to its subcommand.
func (a *admin) Execute(ctx context.Context, args []string) error {
	cmds := a.commands()
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		a.usage(cmds)
		return nil
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return cmd.Run(ctx, args[1:])
}

func (a *admin) usage(cmds map[string]command) {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(a.out, "Usage: authctl <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-15s %s\n", name, cmds[name].Description)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *admin) createUser(ctx context.Context, args []string) error {
	fs := newFlagSet("create-user")
	username := fs.String("username", "", "Account username")
	password := fs.String("password", "", "Password (read from stdin when empty)")
	inactive := fs.Bool("inactive", false, "Create the account disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("-username is required")
	}

	hash, err := a.hash(*password)
	if err != nil {
		return err
	}

	account, err := a.accounts.Create(ctx, &domain.Account{
		Username:     *username,
		PasswordHash: hash,
		IsActive:     !*inactive,
	})
	if err != nil {
		return fmt.Errorf("create %q: %w", *username, err)
	}

	fmt.Fprintf(a.out, "created account %s (%s)\n", account.Username, account.ID)
	return nil
}

func (a *admin) setPassword(ctx context.Context, args []string) error {
	fs := newFlagSet("set-password")
	username := fs.String("username", "", "Account username")
	password := fs.String("password", "", "New password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("-username is required")
	}

	account, err := a.accounts.FindByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("find %q: %w", *username, err)
	}

	hash, err := a.hash(*password)
	if err != nil {
		return err
	}
	if err := a.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	fmt.Fprintf(a.out, "password updated for %s\n", account.Username)
	return nil
}

func (a *admin) grant(ctx context.Context, args []string) error {
	fs := newFlagSet("grant")
	role := fs.String("role", "", "Role name")
	permission := fs.String("permission", "", "Permission name, e.g. user.get")
	description := fs.String("description", "", "Description stored on a newly created permission")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *role == "" || *permission == "" {
		return errors.New("-role and -permission are required")
	}

	if _, err := a.roles.EnsureRole(ctx, *role, ""); err != nil {
		return err
	}
	if _, err := a.roles.EnsurePermission(ctx, *permission, *description); err != nil {
		return err
	}
	if err := a.roles.GrantPermission(ctx, *role, *permission); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "granted %s to role %s\n", *permission, *role)
	return nil
}

func (a *admin) assign(ctx context.Context, args []string) error {
	fs := newFlagSet("assign")
	username := fs.String("username", "", "Account username")
	role := fs.String("role", "", "Role name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *role == "" {
		return errors.New("-username and -role are required")
	}

	account, err := a.accounts.FindByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("find %q: %w", *username, err)
	}
	if err := a.roles.AssignRole(ctx, account.ID, *role); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "assigned role %s to %s\n", *role, account.Username)
	return nil
}

// hash returns the bcrypt hash of password, reading it from a.in when empty.
func (a *admin) hash(password string) (string, error) {
	if password == "" {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return a.creds.HashPassword(password)
}
