package audit

import "time"

// Action classifies an audit event.
type Action string

// Audit actions.
const (
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionQuery  Action = "query"
	ActionDenied Action = "denied"
)

// Event is a single security-relevant occurrence.
type Event struct {
	ID           string
	UserID       string
	Action       Action
	Query        string
	Tables       []string
	Success      bool
	ErrorMessage string
	OccurredAt   time.Time
}
