// Package navigation tracks the current location and reacts to session
// events by redirecting to the login entry point.
package navigation

import (
	"context"
	"strings"
	"sync"

	"github.com/campusfin/client/internal/application/access"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/"
)

// Navigator is an event handler; subscribe it to the session event bus.
type Navigator struct {
	mu        sync.Mutex
	current   string
	returnTo  string
	loginPath string
	homePath  string
	redirects chan string
	logger    *zap.Logger
}

// Option configures a Navigator
type Option func(*Navigator)

// WithLoginPath sets the login entry point
func WithLoginPath(p string) Option {
	return func(n *Navigator) {
		if p != "" {
			n.loginPath = p
		}
	}
}

// WithHomePath sets where users without the required role are sent
func WithHomePath(p string) Option {
	return func(n *Navigator) {
		if p != "" {
			n.homePath = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a navigator positioned at start
func New(start string, opts ...Option) *Navigator {
	n := &Navigator{
		current:   start,
		loginPath: DefaultLoginPath,
		homePath:  DefaultHomePath,
		redirects: make(chan string, 8),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Current returns the current location
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Redirects delivers the target of every forced redirect. Sends never
// block: redirects are dropped when nobody reads them.
func (n *Navigator) Redirects() <-chan string {
	return n.redirects
}

// Navigate moves to path after checking it against the route table and
// returns where the user actually ended up.
func (n *Navigator) Navigate(session identity.Session, path string) (string, access.Decision) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if samePath(path, n.loginPath) {
		n.current = n.loginPath
		return n.current, access.Allow
	}

	d := access.DecideRoute(session, path)
	switch d {
	case access.Allow:
		n.current = path
	case access.RedirectToLogin:
		if !n.atLogin() {
			n.returnTo = path
		}
		n.current = n.loginPath
	case access.RedirectToDefault:
		n.current = n.homePath
	}
	return n.current, d
}

// Handle implements shared.EventHandler
func (n *Navigator) Handle(ctx context.Context, e shared.DomainEvent) error {
	switch e.EventType() {
	case identity.EventTypeSessionExpired:
		n.toLogin()
	case identity.EventTypeLoggedOut:
		n.mu.Lock()
		n.returnTo = ""
		n.current = n.loginPath
		n.mu.Unlock()
	case identity.EventTypeLoggedIn:
		n.mu.Lock()
		if n.atLogin() {
			n.current = n.homePath
			if n.returnTo != "" {
				n.current, n.returnTo = n.returnTo, ""
			}
		}
		n.mu.Unlock()
	}
	return nil
}

// EventTypes implements shared.EventHandler
func (n *Navigator) EventTypes() []string {
	return []string{
		identity.EventTypeSessionExpired,
		identity.EventTypeLoggedOut,
		identity.EventTypeLoggedIn,
	}
}

// toLogin redirects once. Already being at the login page is not a reason
// to navigate again.
func (n *Navigator) toLogin() {
	n.mu.Lock()
	if n.atLogin() {
		n.mu.Unlock()
		return
	}
	from := n.current
	n.returnTo = from
	n.current = n.loginPath
	n.mu.Unlock()

	n.logger.Info("session expired, redirecting to login", zap.String("from", from))
	select {
	case n.redirects <- n.loginPath:
	default:
	}
}

// atLogin reports whether the current location is the login page. Caller holds mu.
func (n *Navigator) atLogin() bool {
	return samePath(n.current, n.loginPath)
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

var _ shared.EventHandler = (*Navigator)(nil)
