package navigation

import (
	"context"
	"testing"

	"github.com/campusfin/client/internal/application/access"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authenticated(roles ...string) identity.Session {
	u := &identity.User{ID: 1, Email: "user@example.edu", IsActive: true}
	for i, r := range roles {
		u.Roles = append(u.Roles, identity.Role{ID: int64(i + 1), Name: r})
	}
	return identity.Session{Token: "t", User: u, Status: identity.StatusAuthenticated}
}

func TestNavigator_Navigate(t *testing.T) {
	tests := []struct {
		name     string
		session  identity.Session
		path     string
		want     string
		decision access.Decision
	}{
		{"admin enters users", authenticated(identity.RoleAdmin), "/users", "/users", access.Allow},
		{"student sent home", authenticated(identity.RoleStudent), "/reports", "/", access.RedirectToDefault},
		{"anonymous sent to login", identity.Session{Status: identity.StatusUnauthenticated}, "/payments", "/login", access.RedirectToLogin},
		{"login page always reachable", identity.Session{Status: identity.StatusUnauthenticated}, "/login/", "/login", access.Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New("/")
			got, d := n.Navigate(tt.session, tt.path)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.decision, d)
			assert.Equal(t, tt.want, n.Current())
		})
	}
}

func TestNavigator_ExpiryRedirectsOnce(t *testing.T) {
	bus := event.NewInMemoryEventBus(nil)
	n := New("/payments")
	bus.Subscribe(n)

	require.NoError(t, bus.Publish(context.Background(), identity.NewSessionExpiredEvent("unauthorized")))
	require.NoError(t, bus.Publish(context.Background(), identity.NewSessionExpiredEvent("unauthorized")))

	assert.Equal(t, "/login", n.Current())
	assert.Equal(t, "/login", <-n.Redirects())
	select {
	case target := <-n.Redirects():
		t.Fatalf("unexpected second redirect to %s", target)
	default:
	}
}

func TestNavigator_NoRedirectWhenAlreadyAtLogin(t *testing.T) {
	n := New("/login", WithLoginPath("/login"))

	require.NoError(t, n.Handle(context.Background(), identity.NewSessionExpiredEvent("token expired")))

	assert.Empty(t, n.Redirects())
}

func TestNavigator_LoginReturnsToPreviousLocation(t *testing.T) {
	n := New("/fees")
	require.NoError(t, n.Handle(context.Background(), identity.NewSessionExpiredEvent("unauthorized")))
	assert.Equal(t, "/login", n.Current())

	require.NoError(t, n.Handle(context.Background(), identity.NewLoggedInEvent("user@example.edu", nil)))
	assert.Equal(t, "/fees", n.Current())
}

func TestNavigator_LogoutForgetsReturnLocation(t *testing.T) {
	n := New("/", WithHomePath("/profile"))
	n.Navigate(identity.Session{Status: identity.StatusUnauthenticated}, "/reports")
	require.NoError(t, n.Handle(context.Background(), identity.NewLoggedOutEvent()))

	require.NoError(t, n.Handle(context.Background(), identity.NewLoggedInEvent("user@example.edu", nil)))
	assert.Equal(t, "/profile", n.Current())
}

func TestNavigator_IgnoresOtherEvents(t *testing.T) {
	n := New("/payments")
	require.NoError(t, n.Handle(context.Background(), identity.NewRevalidatedEvent(nil)))
	assert.Equal(t, "/payments", n.Current())
}
