package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/client/session"
	"github.com/dmitrijs2005/eduportal/internal/common"
)

// reportedError is a failure the command already printed.
type reportedError struct {
	msg string
}

func (e *reportedError) Error() string { return e.msg }

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

var errNotLoggedIn error = &reportedError{msg: "not logged in"}

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// report prints the outcome of an operation and converts a failed Result
// into an error.
func (a *App) report(res session.Result, success string) error {
	if !res.Success {
		fmt.Fprintln(a.out, "Error:", res.Error)
		return &reportedError{msg: res.Error}
	}
	fmt.Fprintln(a.out, success)
	return nil
}

// Login prompts for email and password and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.session.Login(ctx, models.Credentials{Email: email, Password: string(password)})
	if !res.Success {
		return a.report(res, "")
	}
	return a.report(res, "Logged in as "+a.displayName())
}

// Register prompts for the account details and creates the account. Role
// and grade are optional; the server applies its defaults when empty.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	role, err := getSimpleText(a.reader, "Enter role (student, teacher; empty for student)", a.out)
	if err != nil {
		return err
	}
	grade, err := getSimpleText(a.reader, "Enter grade (optional)", a.out)
	if err != nil {
		return err
	}

	res := a.session.Register(ctx, models.Registration{
		Name:     name,
		Email:    email,
		Password: string(password),
		Role:     strings.ToLower(role),
		Grade:    grade,
	})
	if !res.Success {
		return a.report(res, "")
	}
	return a.report(res, "Registered and logged in as "+a.displayName())
}

// Logout ends the session. The session is always closed; a failure to
// wipe the stored credentials is reported so the user knows it may come
// back on the next start.
func (a *App) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	if err != nil {
		fmt.Fprintln(a.out, "Warning: stored credentials could not be removed:", err)
		return &reportedError{msg: err.Error()}
	}
	return nil
}

// Whoami prints the signed-in user.
func (a *App) Whoami(ctx context.Context) error {
	s := a.session.Snapshot()
	if !s.IsAuthenticated {
		fmt.Fprintln(a.out, "Not logged in")
		return errNotLoggedIn
	}

	u := s.User
	fmt.Fprintf(a.out, "ID:     %s\n", u.ID)
	fmt.Fprintf(a.out, "Name:   %s\n", u.Name)
	fmt.Fprintf(a.out, "Email:  %s\n", u.Email)
	fmt.Fprintf(a.out, "Role:   %s\n", u.Role)
	if u.Grade != "" {
		fmt.Fprintf(a.out, "Grade:  %s\n", u.Grade)
	}
	if u.Avatar != "" {
		fmt.Fprintf(a.out, "Avatar: %s\n", u.Avatar)
	}
	if exp, ok := a.session.TokenExpiry(); ok {
		fmt.Fprintf(a.out, "Token expires: %s\n", exp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Dismiss clears the error of the last failed login or register.
func (a *App) Dismiss() {
	a.session.ClearError()
}

func (a *App) displayName() string {
	u := a.session.Snapshot().User
	if u == nil {
		return ""
	}
	if u.Name == "" {
		return u.Email
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}

// newPassword asks for a password twice.
func (a *App) newPassword() ([]byte, error) {
	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return nil, err
	}
	confirm, err := getPassword(a.reader, "Repeat password", a.out)
	if err != nil {
		common.WipeByteArray(password)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		common.WipeByteArray(password)
		fmt.Fprintln(a.out, "Error: passwords do not match")
		return nil, &reportedError{msg: "passwords do not match"}
	}
	return password, nil
}
