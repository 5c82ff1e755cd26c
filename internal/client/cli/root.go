package cli

import (
	"context"
	"fmt"
)

// Root runs the interactive REPL until the user exits or input ends.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to eduportal CLI (type 'help' for commands)")
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Logged in as "+a.displayName())
	} else {
		fmt.Fprintln(a.out, "Not logged in. Type 'login' or 'register'.")
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
