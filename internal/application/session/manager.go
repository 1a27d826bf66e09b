// Package session owns the client's credential and signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/backend"
	"github.com/campusfin/client/internal/infrastructure/logger"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"github.com/campusfin/client/internal/infrastructure/tokeninfo"
	"go.uber.org/zap"
)

// AuthAPI is the part of the backend the manager talks to
type AuthAPI interface {
	Login(ctx context.Context, creds identity.Credentials) (*backend.TokenResponse, error)
	Me(ctx context.Context) (*identity.User, error)
}

// TokenStore persists the token between runs
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// ttlSaver is implemented by stores that can expire the token themselves
type ttlSaver interface {
	SaveWithTTL(ctx context.Context, token string, ttl time.Duration) error
}

// Manager is the single writer of the session and the persisted token.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	session    identity.Session
	generation uint64
	lastError  string

	// storeMu serializes token store writes so a teardown cannot wipe a
	// token saved by a newer login.
	storeMu sync.Mutex

	api     AuthAPI
	store   TokenStore
	events  shared.EventPublisher
	metrics *metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithEventPublisher publishes session events to p
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(m *Manager) { m.events = p }
}

// WithMetrics records session transitions
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager in the Unauthenticated state. Call Start to
// pick up a persisted token.
func NewManager(api AuthAPI, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		session: identity.NewSession(""),
		api:     api,
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start loads the persisted token and, when there is one, revalidates it
// before returning. With no token the session stays Unauthenticated and
// Start returns nil.
func (m *Manager) Start(ctx context.Context) error {
	token, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load persisted token", zap.Error(err))
		token = ""
	}

	m.mu.Lock()
	m.session = identity.NewSession(token)
	m.mu.Unlock()

	if token == "" {
		return nil
	}
	m.metrics.SessionTransition(identity.StatusAuthenticating.String())
	return m.Revalidate(ctx)
}

// Login exchanges credentials for a token, persists it, then loads the
// user's profile. A failed profile fetch still leaves the session
// Authenticated, without a user.
//
// Rejected credentials return an error matching shared.ErrAuth and leave
// the session unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (identity.Session, error) {
	creds := identity.NewCredentials(email, password)
	email = creds.Email
	if err := creds.Validate(); err != nil {
		msg := err.Error()
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		m.setLastError(msg)
		return m.Snapshot(), err
	}

	m.mu.Lock()
	previous := m.session.Clone()
	m.transition(identity.StatusAuthenticating)
	m.mu.Unlock()

	m.logger.Info("login attempt", zap.String("email", email))
	tok, err := m.api.Login(ctx, creds)
	if err != nil {
		err = loginError(err)
		m.mu.Lock()
		m.session = previous
		m.lastError = userMessage(err, "Login failed")
		m.mu.Unlock()
		m.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return previous, err
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.session = identity.Session{Token: tok.AccessToken, Status: identity.StatusAuthenticating}
	m.lastError = ""
	m.mu.Unlock()

	m.persist(ctx, gen, tok.AccessToken)

	user, err := m.api.Me(ctx)

	m.mu.Lock()
	if m.generation != gen {
		// a 401 on the profile fetch already tore the session down
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("%w: token rejected right after login", shared.ErrSessionExpired)
	}
	if err != nil {
		m.logger.Warn("failed to load profile after login", zap.Error(err))
		user = nil
	}
	m.session.User = user
	m.transition(identity.StatusAuthenticated)
	snap := m.session.Clone()
	m.mu.Unlock()

	if user != nil {
		_, log := logger.WithUserID(ctx, m.logger, user.ID)
		log.Info("user logged in", zap.Strings("roles", user.RoleNames()))
	}
	m.publish(ctx, identity.NewLoggedInEvent(email, user))
	return snap, nil
}

// Logout discards the session and the persisted token. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	if m.teardown(ctx, false) {
		m.logger.Info("user logged out")
		m.publish(ctx, identity.NewLoggedOutEvent())
		return
	}
	// nothing in memory, but an earlier run may have left a token behind
	m.persist(ctx, m.Generation(), "")
}

// Revalidate checks the current token against the backend. On any failure
// the token is discarded, the session becomes Unauthenticated and the
// returned error matches shared.ErrSessionExpired.
func (m *Manager) Revalidate(ctx context.Context) error {
	m.mu.Lock()
	token := m.session.Token
	if token == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: no token", shared.ErrSessionExpired)
	}
	m.transition(identity.StatusAuthenticating)
	gen := m.generation
	m.mu.Unlock()

	if tokeninfo.Expired(token, m.now()) {
		m.expire(ctx, "token expired")
		return fmt.Errorf("%w: token expired", shared.ErrSessionExpired)
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.expireIf(ctx, gen, "revalidation failed")
		return fmt.Errorf("%w: %w", shared.ErrSessionExpired, err)
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return fmt.Errorf("%w: session changed during revalidation", shared.ErrSessionExpired)
	}
	m.session.User = user
	m.transition(identity.StatusAuthenticated)
	m.mu.Unlock()

	m.logger.Debug("session revalidated", zap.Int64("user_id", user.ID))
	m.publish(ctx, identity.NewRevalidatedEvent(user))
	return nil
}

// HandleUnauthorized is the target of the transport's 401 hook. It tears
// the session down through Expired. Calls while already signed out do nothing.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	m.expire(ctx, "unauthorized")
}

// Token returns the current bearer token, or "" when there is none
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// Snapshot returns a copy of the session
func (m *Manager) Snapshot() identity.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// Status returns the session status
func (m *Manager) Status() identity.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Status
}

// Generation changes whenever a session starts or ends. Work started under
// one generation must not write results once it has changed.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// LastError returns the message of the last failed login, if any
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// ClearError clears the login error, e.g. when the user edits the form
func (m *Manager) ClearError() {
	m.setLastError("")
}

func (m *Manager) setLastError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = msg
}

func (m *Manager) expire(ctx context.Context, reason string) {
	if m.teardown(ctx, true) {
		m.logger.Info("session expired", zap.String("reason", reason))
		m.publish(ctx, identity.NewSessionExpiredEvent(reason))
	}
}

// expireIf expires the session only if it is still generation gen
func (m *Manager) expireIf(ctx context.Context, gen uint64, reason string) {
	if m.Generation() == gen {
		m.expire(ctx, reason)
	}
}

// teardown resets to Unauthenticated and clears the store. It reports false
// when there was nothing to tear down.
func (m *Manager) teardown(ctx context.Context, expired bool) bool {
	m.mu.Lock()
	if m.session.Status == identity.StatusUnauthenticated && m.session.Token == "" {
		m.mu.Unlock()
		return false
	}
	m.generation++
	gen := m.generation
	if expired {
		m.transition(identity.StatusExpired)
	}
	m.transition(identity.StatusUnauthenticated)
	m.session = identity.Session{Status: identity.StatusUnauthenticated}
	m.mu.Unlock()

	m.persist(ctx, gen, "")
	return true
}

// persist writes token (or clears the store for "") unless a newer session
// has started since gen.
func (m *Manager) persist(ctx context.Context, gen uint64, token string) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if m.Generation() != gen {
		return
	}

	var err error
	switch ts, ok := m.store.(ttlSaver); {
	case token == "":
		err = m.store.Clear(ctx)
	case ok:
		err = ts.SaveWithTTL(ctx, token, tokeninfo.TTL(token, m.now()))
	default:
		err = m.store.Save(ctx, token)
	}
	if err != nil {
		m.logger.Error("failed to update persisted token", zap.Bool("clear", token == ""), zap.Error(err))
	}
}

// transition moves to next. Caller holds mu.
func (m *Manager) transition(next identity.Status) {
	cur := m.session.Status
	if cur == next {
		return
	}
	if !cur.CanTransitionTo(next) {
		m.logger.Warn("unexpected session transition",
			zap.Stringer("from", cur), zap.Stringer("to", next))
	}
	m.session.Status = next
	m.metrics.SessionTransition(next.String())
}

func (m *Manager) publish(ctx context.Context, e shared.DomainEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, e); err != nil {
		m.logger.Warn("failed to publish session event", zap.String("event_type", e.EventType()), zap.Error(err))
	}
}

// loginError turns a rejected login response into an AuthError. Transport
// failures and server errors are returned unchanged.
func loginError(err error) error {
	var netErr *shared.NetworkError
	if !errors.As(err, &netErr) {
		return err
	}
	if netErr.StatusCode >= http.StatusBadRequest && netErr.StatusCode < http.StatusInternalServerError {
		return &shared.AuthError{Detail: netErr.Detail}
	}
	return err
}

func userMessage(err error, fallback string) string {
	var authErr *shared.AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	var netErr *shared.NetworkError
	if errors.As(err, &netErr) {
		return netErr.UserMessage(fallback)
	}
	return fallback
}

var _ interface{ Token() string } = (*Manager)(nil)
