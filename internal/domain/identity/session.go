package identity

// Status is the lifecycle state of a client session
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusExpired         Status = "expired"
)

// String implements fmt.Stringer
func (s Status) String() string {
	return string(s)
}

// validTransitions lists the allowed state changes
var validTransitions = map[Status][]Status{
	StatusUnauthenticated: {StatusAuthenticating, StatusAuthenticated},
	StatusAuthenticating:  {StatusAuthenticated, StatusUnauthenticated, StatusExpired},
	StatusAuthenticated:   {StatusExpired, StatusUnauthenticated, StatusAuthenticating},
	StatusExpired:         {StatusUnauthenticated},
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is the authenticated-identity state held by the client.
//
// User is set only while Authenticated. It may still be nil in that state when
// the profile fetch after login failed; role-gated routes are then denied.
type Session struct {
	Token  string
	User   *User
	Status Status
}

// NewSession returns the initial session for a process, given whatever token
// was found in persistent storage.
func NewSession(persistedToken string) Session {
	if persistedToken == "" {
		return Session{Status: StatusUnauthenticated}
	}
	return Session{Token: persistedToken, Status: StatusAuthenticating}
}

// IsAuthenticated reports whether the session is usable for requests
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != ""
}

// HasProfile reports whether user details were loaded
func (s Session) HasProfile() bool {
	return s.User != nil
}

// Clone returns a copy that shares nothing with s
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	return s
}
