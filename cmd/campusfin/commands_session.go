package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

func init() {
	register(command{name: "login", summary: "Log in and remember the session", run: runLogin})
	register(command{name: "logout", summary: "Forget the current session", run: runLogout})
	register(command{name: "whoami", route: "/profile", summary: "Show the logged-in user", run: runWhoami})
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login", e.stderr)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (default: $CAMPUSFIN_PASSWORD or first line of stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw := *password
	if pw == "" {
		pw = os.Getenv("CAMPUSFIN_PASSWORD")
	}
	if pw == "" && e.stdin != nil {
		line, err := bufio.NewReader(e.stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password given")
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	snap, err := e.app.session.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	if snap.User == nil {
		e.out.message("Logged in, but your profile could not be loaded.")
		return nil
	}
	return e.out.print(snap.User, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Logged in as %s <%s> (%s)\n", snap.User.FullName, snap.User.Email, roleList(snap.User.RoleNames()))
	})
}

func runLogout(ctx context.Context, e *env, args []string) error {
	e.app.session.Logout(ctx)
	e.out.message("Logged out.")
	return nil
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	u := e.app.session.Snapshot().User
	if u == nil {
		return errors.New("profile not available")
	}
	return e.out.print(u, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "ID:\t%d\n", u.ID)
		fmt.Fprintf(tw, "Name:\t%s\n", u.FullName)
		fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
		fmt.Fprintf(tw, "Roles:\t%s\n", roleList(u.RoleNames()))
		fmt.Fprintf(tw, "Active:\t%t\n", u.IsActive)
	})
}
