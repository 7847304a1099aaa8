package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"maildash/models"
	"maildash/store"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Print the provider sign-in URL",
	Long: `Print the URL of the mail provider's consent page.

Open it in a browser, approve access, then pass the "code" query parameter
of the page you are sent back to into "maildashctl callback".`,
	Args: cobra.NoArgs,
	RunE: run(func(ctx context.Context, e *environment, args []string) error {
		authURL, err := e.manager.Login(ctx)
		if err != nil {
			return err
		}
		return e.print(map[string]string{"auth_url": authURL}, func(w io.Writer) {
			fmt.Fprintln(w, "Open this URL to sign in:")
			fmt.Fprintln(w, authURL)
		})
	}),
}

var callbackCmd = &cobra.Command{
	Use:   "callback <code>",
	Short: "Finish sign-in with the authorization code",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, e *environment, args []string) error {
		key, err := e.sessionKey(true)
		if err != nil {
			return err
		}
		sess, err := e.manager.Callback(ctx, key, args[0])
		if err != nil {
			return err
		}
		return e.print(sess, func(w io.Writer) {
			fmt.Fprintf(w, "Logged in as %s\n", sess.UserID)
		})
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the user id of the current session",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		return e.print(sess, func(w io.Writer) {
			fmt.Fprintln(w, sess.UserID)
		})
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the /api endpoints",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		token, expires, err := e.manager.Token(sess)
		if err != nil {
			return err
		}
		out := map[string]string{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": expires.UTC().Format(time.RFC3339),
			"user_id":    sess.UserID,
		}
		return e.print(out, func(w io.Writer) {
			fmt.Fprintln(w, token)
		})
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the current session",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, e *environment, args []string) error {
		key, err := e.sessionKey(false)
		if err != nil {
			fmt.Fprintln(e.out, "Not logged in")
			return nil
		}
		if err := e.manager.Logout(key); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Logged out")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(loginCmd, callbackCmd, whoamiCmd, tokenCmd, logoutCmd)
}
