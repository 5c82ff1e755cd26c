package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
)

// Profile prompts for each editable field, showing the current value. An
// empty answer keeps the field.
func (a *App) Profile(ctx context.Context) error {
	s := a.session.Snapshot()
	if !s.IsAuthenticated {
		fmt.Fprintln(a.out, "Not logged in")
		return errNotLoggedIn
	}
	u := s.User

	var p models.UserPatch
	fields := []struct {
		label   string
		current string
		dst     **string
	}{
		{"Name", u.Name, &p.Name},
		{"Email", u.Email, &p.Email},
		{"Grade", u.Grade, &p.Grade},
		{"Avatar URL", u.Avatar, &p.Avatar},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", f.label, f.current), a.out)
		if err != nil {
			return err
		}
		if v != "" && v != f.current {
			*f.dst = models.StringPtr(v)
		}
	}

	return a.UpdateProfile(ctx, p)
}

// UpdateProfile sends p as is.
func (a *App) UpdateProfile(ctx context.Context, p models.UserPatch) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return errNotLoggedIn
	}
	if p.IsEmpty() {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}
	return a.report(a.session.UpdateProfile(ctx, p), "Profile updated")
}
