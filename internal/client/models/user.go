// Package models defines the client-side data models exchanged with the
// eduportal auth service and kept in the local credential store.
package models

import (
	"encoding/json"
	"fmt"
)

// User is the identity record of the signed-in account.
// Grade and Avatar are optional and omitted from JSON when empty.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Grade  string `json:"grade,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UserPatch carries a partial user record. A nil field means "not present";
// it is used both for profile update requests and for decoding partial
// user records returned by the server.
type UserPatch struct {
	ID     *string `json:"id,omitempty"`
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Role   *string `json:"role,omitempty"`
	Grade  *string `json:"grade,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// Clone returns a copy of u, or nil for a nil receiver.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Merge returns a copy of u with every present field of p applied.
func (u User) Merge(p UserPatch) User {
	if p.ID != nil {
		u.ID = *p.ID
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Grade != nil {
		u.Grade = *p.Grade
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	return u
}

// IsEmpty reports whether no field of p is present.
func (p UserPatch) IsEmpty() bool {
	return p.ID == nil && p.Name == nil && p.Email == nil &&
		p.Role == nil && p.Grade == nil && p.Avatar == nil
}

// MarshalUser serializes u for the credential store.
func MarshalUser(u *User) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("marshal user: nil user")
	}
	return json.Marshal(u)
}

// UnmarshalUser parses a serialized user record. Empty input and the JSON
// literal null are rejected so a corrupt slot never yields a nil user.
func UnmarshalUser(data []byte) (*User, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("unmarshal user: empty data")
	}
	var u *User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("unmarshal user: null record")
	}
	return u, nil
}

// StringPtr returns a pointer to s, for building patches.
func StringPtr(s string) *string {
	return &s
}
