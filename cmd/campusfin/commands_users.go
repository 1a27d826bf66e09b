package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/campusfin/client/internal/domain/identity"
)

func init() {
	register(command{name: "users", route: "/users", summary: "List user accounts", run: runUsers})
	register(command{name: "user-create", route: "/users", summary: "Create a user account", run: runUserCreate})
}

func runUsers(ctx context.Context, e *env, args []string) error {
	if err := newFlags("users", e.stderr).Parse(args); err != nil {
		return err
	}
	users, err := e.app.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	return e.out.print(users, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLES\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.FullName, u.Email, roleList(u.RoleNames()), u.IsActive)
		}
	})
}

func runUserCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlags("user-create", e.stderr)
	email := fs.String("email", "", "Email")
	name := fs.String("name", "", "Full name")
	password := fs.String("password", "", "Initial password (at least 8 characters)")
	roles := fs.String("roles", identity.RoleStudent, "Comma separated roles: admin, faculty, student")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := identity.CreateUserCommand{
		Email:    strings.TrimSpace(*email),
		FullName: strings.TrimSpace(*name),
		Password: *password,
	}
	for r := range strings.SplitSeq(*roles, ",") {
		if r = strings.TrimSpace(strings.ToLower(r)); r != "" {
			cmd.Roles = append(cmd.Roles, r)
		}
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	u, err := e.app.api.CreateUser(ctx, cmd)
	if err != nil {
		return err
	}
	return e.out.print(u, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Created user %d <%s> (%s)\n", u.ID, u.Email, roleList(u.RoleNames()))
	})
}
