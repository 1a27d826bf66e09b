// Package main is the campusfin command line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/campusfin/client/internal/application/access"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/config"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes
const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitAuth      = 3
	exitForbidden = 4
	exitPartial   = 5
)

// command is one subcommand. route is the view it represents, "" for none.
type command struct {
	name    string
	route   string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{}

func register(c command) {
	commands[c.name] = c
}

// env is what a command runs with
type env struct {
	app    *app
	out    *printer
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, wires the app and executes one subcommand
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("campusfin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  string
		output      string
		verbose     bool
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "", "Path to campusfin.toml")
	fs.StringVar(&configPath, "c", "", "Path to campusfin.toml (shorthand)")
	fs.StringVar(&output, "o", "table", "Output format: table, json or yaml")
	fs.BoolVar(&verbose, "verbose", false, "Log at debug level")
	fs.BoolVar(&verbose, "v", false, "Log at debug level (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if showVersion {
		fmt.Fprintf(stdout, "campusfin version %s\n", version)
		fmt.Fprintf(stdout, "  Build time: %s\n", buildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", gitCommit)
		return exitOK
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return exitUsage
	}
	cmd, args := resolve(rest)
	if cmd.run == nil {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", strings.Join(rest, " "))
		printUsage(stderr)
		return exitUsage
	}

	out, err := newPrinter(stdout, output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return exitError
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer a.Close()

	e := &env{app: a, out: out, stdout: stdout, stderr: stderr, stdin: stdin}
	if cmd.route != "" {
		if _, err := a.enter(ctx, cmd.route); err != nil {
			return report(stderr, err)
		}
	}
	if err := cmd.run(ctx, e, args); err != nil {
		return report(stderr, err)
	}
	return exitOK
}

// resolve finds the command for args, trying two-word names like
// "receipt download" first.
func resolve(args []string) (command, []string) {
	if len(args) >= 2 {
		if c, ok := commands[args[0]+" "+args[1]]; ok {
			return c, args[2:]
		}
	}
	return commands[args[0]], args[1:]
}

// accessError is returned when the session may not open a view
type accessError struct {
	route    string
	decision access.Decision
}

func (e *accessError) Error() string {
	if e.decision == access.RedirectToLogin {
		return "not logged in; run: campusfin login"
	}
	return fmt.Sprintf("your role does not allow access to %s", e.route)
}

// report prints err and maps it to an exit code
func report(w io.Writer, err error) int {
	var accErr *accessError
	var valErr *shared.ValidationError
	switch {
	case errors.As(err, &accErr):
		fmt.Fprintf(w, "Error: %v\n", err)
		if accErr.decision == access.RedirectToLogin {
			return exitAuth
		}
		return exitForbidden
	case errors.Is(err, shared.ErrSessionExpired):
		fmt.Fprintln(w, "Error: your session has expired; run: campusfin login")
		return exitAuth
	case errors.Is(err, shared.ErrAuth):
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitAuth
	case errors.As(err, &valErr):
		fmt.Fprintf(w, "Error: %s\n", valErr.Message)
		for _, f := range valErr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
		}
		return exitUsage
	case errors.Is(err, shared.ErrPartialBatch):
		fmt.Fprintf(w, "Warning: %v\n", err)
		return exitPartial
	case errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `campusfin - institution finance client

USAGE:
    campusfin [global options] <command> [command options]

GLOBAL OPTIONS:
    -config, -c <path>    Path to campusfin.toml
    -o <format>           Output format: table, json or yaml (default table)
    -verbose, -v          Log at debug level
    -version              Show version information

COMMANDS:
`)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %-22s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, `
CONFIGURATION:
    Settings are read from campusfin.toml in the current directory,
    the user config directory or /etc/campusfin, and can be overridden
    with CAMPUSFIN_* environment variables (e.g. CAMPUSFIN_API_BASE_URL).

EXAMPLES:
    campusfin login -email admin@example.edu
    campusfin -o json payments -student 42
    campusfin receipts print-all -student 42
`)
}
