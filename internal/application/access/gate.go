// Package access decides whether a session may enter a view.
package access

import (
	"strings"

	"github.com/campusfin/client/internal/domain/identity"
)

// Decision is the outcome of an access check
type Decision int

const (
	// Allow lets the caller proceed
	Allow Decision = iota
	// RedirectToLogin is returned for sessions that are not authenticated
	RedirectToLogin
	// RedirectToDefault is returned for authenticated sessions lacking a required role
	RedirectToDefault
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToDefault:
		return "redirect_to_default"
	default:
		return "unknown"
	}
}

// Decide maps a session and the roles a view requires to a decision.
// It has no side effects and does not retain the session.
func Decide(session identity.Session, requiredRoles ...string) Decision {
	if !session.IsAuthenticated() {
		return RedirectToLogin
	}
	if len(requiredRoles) == 0 {
		return Allow
	}
	if session.User.HasAnyRole(requiredRoles...) {
		return Allow
	}
	return RedirectToDefault
}

// Route is a navigable view and the roles allowed to enter it.
// An empty Roles list means any authenticated user.
type Route struct {
	Path  string
	Roles []string
}

// Routes lists the views of the application
var Routes = []Route{
	{Path: "/"},
	{Path: "/profile"},
	{Path: "/users", Roles: []string{identity.RoleAdmin}},
	{Path: "/fees", Roles: []string{identity.RoleAdmin, identity.RoleFaculty}},
	{Path: "/standard-fees", Roles: []string{identity.RoleAdmin}},
	{Path: "/payments"},
	{Path: "/reports", Roles: []string{identity.RoleAdmin, identity.RoleFaculty}},
	{Path: "/courses", Roles: []string{identity.RoleAdmin, identity.RoleFaculty}},
}

// Lookup finds the route for path, ignoring a trailing slash
func Lookup(path string) (Route, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// DecideRoute applies Decide with the roles of path. Unknown paths only
// require authentication; rendering a not-found view is up to the caller.
func DecideRoute(session identity.Session, path string) Decision {
	route, _ := Lookup(path)
	return Decide(session, route.Roles...)
}
