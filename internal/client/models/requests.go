package models

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Grade    string `json:"grade,omitempty"`
}

// PasswordChange is the change-password request body.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the success body of login and register.
// Either field may be missing in a malformed response.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UserResponse is the success body of the me endpoint.
type UserResponse struct {
	User *User `json:"user"`
}

// UserPatchResponse is the success body of the profile endpoint; the
// returned record may be partial.
type UserPatchResponse struct {
	User *UserPatch `json:"user"`
}

// ErrorResponse is the failure body the auth service sends with non-2xx codes.
type ErrorResponse struct {
	Message string `json:"message"`
}
