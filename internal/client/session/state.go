package session

import "github.com/dmitrijs2005/eduportal/internal/client/models"

// Status is the state-machine name of a State.
type Status int

const (
	StatusResolving Status = iota
	StatusUnauthenticated
	StatusAuthenticated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusResolving:
		return "Resolving"
	case StatusUnauthenticated:
		return "Unauthenticated"
	case StatusAuthenticated:
		return "Authenticated"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// State is one snapshot of the session.
type State struct {
	User            *models.User
	Token           string
	IsAuthenticated bool
	Loading         bool
	Error           string
}

// Initial is the state before startup reconciliation ran.
func Initial() State {
	return State{Loading: true}
}

func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusResolving
	case s.IsAuthenticated:
		return StatusAuthenticated
	case s.Error != "":
		return StatusFailed
	default:
		return StatusUnauthenticated
	}
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	s.User = s.User.Clone()
	return s
}

// Result is the outcome of an operation as seen by its caller.
type Result struct {
	Success bool
	Error   string
}

func succeeded() Result {
	return Result{Success: true}
}

func failed(msg string) Result {
	return Result{Error: msg}
}
