package identity

import "github.com/campusfin/client/internal/domain/shared"

// Event types published by the session manager
const (
	EventTypeLoggedIn       = "session.logged_in"
	EventTypeLoggedOut      = "session.logged_out"
	EventTypeSessionExpired = "session.expired"
	EventTypeRevalidated    = "session.revalidated"
)

// LoggedInEvent is published after a successful login
type LoggedInEvent struct {
	shared.BaseDomainEvent
	UserID     int64  `json:"user_id,omitempty"`
	Email      string `json:"email"`
	HasProfile bool   `json:"has_profile"`
}

// NewLoggedInEvent creates a LoggedInEvent
func NewLoggedInEvent(email string, user *User) *LoggedInEvent {
	e := &LoggedInEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoggedIn),
		Email:           email,
		HasProfile:      user != nil,
	}
	if user != nil {
		e.UserID = user.ID
	}
	return e
}

// LoggedOutEvent is published after an explicit logout
type LoggedOutEvent struct {
	shared.BaseDomainEvent
}

// NewLoggedOutEvent creates a LoggedOutEvent
func NewLoggedOutEvent() *LoggedOutEvent {
	return &LoggedOutEvent{BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoggedOut)}
}

// SessionExpiredEvent is published when the token is rejected, either during
// revalidation or by any backend call answering 401.
type SessionExpiredEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewSessionExpiredEvent creates a SessionExpiredEvent
func NewSessionExpiredEvent(reason string) *SessionExpiredEvent {
	return &SessionExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionExpired),
		Reason:          reason,
	}
}

// RevalidatedEvent is published when a persisted token was accepted at startup
type RevalidatedEvent struct {
	shared.BaseDomainEvent
	UserID int64 `json:"user_id"`
}

// NewRevalidatedEvent creates a RevalidatedEvent
func NewRevalidatedEvent(user *User) *RevalidatedEvent {
	e := &RevalidatedEvent{BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRevalidated)}
	if user != nil {
		e.UserID = user.ID
	}
	return e
}
