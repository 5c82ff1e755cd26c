package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/common"
)

// ChangePassword prompts for the current and the new password.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return errNotLoggedIn
	}

	current, err := getPassword(a.reader, "Enter current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	fmt.Fprintln(a.out, "New password")
	next, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	res := a.session.ChangePassword(ctx, models.PasswordChange{
		CurrentPassword: string(current),
		NewPassword:     string(next),
	})
	return a.report(res, "Password changed")
}

// ForgotPassword requests a reset link for email, prompting when empty.
func (a *App) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		var err error
		if email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
			return err
		}
	}
	return a.report(a.session.ForgotPassword(ctx, email), "Password reset email sent to "+email)
}

// ResetPassword sets a new password with the token from the reset email,
// prompting for the token when empty.
func (a *App) ResetPassword(ctx context.Context, resetToken string) error {
	if resetToken == "" {
		var err error
		if resetToken, err = getSimpleText(a.reader, "Enter reset token", a.out); err != nil {
			return err
		}
	}

	password, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.report(a.session.ResetPassword(ctx, resetToken, string(password)), "Password has been reset. You can log in now.")
}
