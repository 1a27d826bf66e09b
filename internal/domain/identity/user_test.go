package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRoleNames(t *testing.T) {
	u := &User{Roles: []Role{
		{ID: 1, Name: "admin"},
		{ID: 7, Name: "Admin"},
		{ID: 2, Name: " faculty "},
		{ID: 3, Name: ""},
	}}

	assert.Equal(t, []string{"admin", "faculty"}, u.RoleNames())
	assert.True(t, u.HasAnyRole("student", "faculty"))
	assert.False(t, u.HasAnyRole("student"))

	var nilUser *User
	assert.Nil(t, nilUser.RoleNames())
	assert.False(t, nilUser.HasAnyRole("admin"))
}

func TestUserClone(t *testing.T) {
	u := &User{ID: 1, Roles: []Role{{ID: 1, Name: "admin"}}}
	c := u.Clone()
	c.Roles[0].Name = "student"

	assert.Equal(t, "admin", u.Roles[0].Name)
}

func TestNewSession(t *testing.T) {
	s := NewSession("")
	assert.Equal(t, StatusUnauthenticated, s.Status)
	assert.False(t, s.IsAuthenticated())

	s = NewSession("tok")
	assert.Equal(t, StatusAuthenticating, s.Status)
	assert.Equal(t, "tok", s.Token)
	assert.False(t, s.IsAuthenticated())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusUnauthenticated.CanTransitionTo(StatusAuthenticating))
	assert.True(t, StatusAuthenticated.CanTransitionTo(StatusExpired))
	assert.True(t, StatusExpired.CanTransitionTo(StatusUnauthenticated))
	assert.False(t, StatusExpired.CanTransitionTo(StatusAuthenticated))
	assert.False(t, StatusUnauthenticated.CanTransitionTo(StatusExpired))
}
