package session

import "github.com/dmitrijs2005/eduportal/internal/client/client"

const (
	fallbackLogin          = "Login failed. Please try again."
	fallbackRegister       = "Registration failed. Please try again."
	fallbackUpdate         = "Update failed"
	fallbackChangePassword = "Password change failed"
	fallbackForgotPassword = "Password reset request failed"
	fallbackResetPassword  = "Password reset failed"
)

// failureMessage picks the user-facing text for err: the server's message,
// then the error text, then fallback.
func failureMessage(err error, fallback string) string {
	if msg := client.ServerMessage(err); msg != "" {
		return msg
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

// serverMessageOr is the caller-scoped variant: the server's message, else
// fallback.
func serverMessageOr(err error, fallback string) string {
	if msg := client.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}
