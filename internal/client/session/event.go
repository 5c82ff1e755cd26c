package session

import "github.com/dmitrijs2005/eduportal/internal/client/models"

// Event is a named transition applied by Reduce.
type Event interface {
	event()
}

// AuthStart marks the beginning of a login or register attempt.
type AuthStart struct{}

// AuthSuccess installs an authenticated identity.
type AuthSuccess struct {
	User  *models.User
	Token string
}

// AuthFail drops the identity. An empty Message leaves no error behind.
type AuthFail struct {
	Message string
}

type Logout struct{}

type ClearError struct{}

// UpdateUser merges Patch into the current user.
type UpdateUser struct {
	Patch models.UserPatch
}

func (AuthStart) event()   {}
func (AuthSuccess) event() {}
func (AuthFail) event()    {}
func (Logout) event()      {}
func (ClearError) event()  {}
func (UpdateUser) event()  {}
