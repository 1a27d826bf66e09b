package main

import (
	"context"
	"testing"

	"github.com/campusfin/client/internal/application/access"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_CloseDetachesEventHandlers(t *testing.T) {
	newHarness(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)

	admin := identity.Session{
		Token:  "token",
		Status: identity.StatusAuthenticated,
		User:   &identity.User{ID: 1, Roles: []identity.Role{{ID: 1, Name: identity.RoleAdmin}}},
	}
	_, d := a.navigator.Navigate(admin, "/payments")
	require.Equal(t, access.Allow, d)

	a.Close()
	require.NoError(t, a.bus.Publish(context.Background(), identity.NewSessionExpiredEvent("unauthorized")))

	assert.Equal(t, "/payments", a.navigator.Current())
	select {
	case to := <-a.navigator.Redirects():
		t.Fatalf("unexpected redirect to %s after close", to)
	default:
	}
}
