package identity

import "strings"

// Role names known to the backend
const (
	RoleAdmin   = "admin"
	RoleFaculty = "faculty"
	RoleStudent = "student"
)

// Role is a named role assigned to a user. Role checks compare names, never ids.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// User is the profile returned by /auth/me
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsActive bool   `json:"is_active"`
	Roles    []Role `json:"roles"`
}

// RoleNames returns the user's role names, deduplicated, in first-seen order
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(u.Roles))
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// HasAnyRole reports whether the user holds at least one of the given role names
func (u *User) HasAnyRole(names ...string) bool {
	if u == nil {
		return false
	}
	for _, have := range u.RoleNames() {
		for _, want := range names {
			if have == strings.ToLower(strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	return &c
}
