package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/portal"
)

func (r *root) newLoginCmd() *cobra.Command {
	var (
		email     string
		admin     bool
		fromStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a student or an administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := password(cmd, fromStdin)
			if err != nil {
				return err
			}
			role := auth.RoleStudent
			if admin {
				role = auth.RoleAdmin
			}
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.store.Login(ctx, role, portal.Credentials{Email: email, Password: pw})
				if err != nil {
					return failed(err, "Login failed")
				}
				return r.printSession(cmd.OutOrStdout(), sess)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&admin, "admin", false, "log in through the administrator endpoint")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (r *root) newRegisterCmd() *cobra.Command {
	var (
		name      string
		email     string
		fromStdin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := password(cmd, fromStdin)
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.store.Register(ctx, portal.Registration{Name: name, Email: email, Password: pw})
				if err != nil {
					return failed(err, "Registration failed")
				}
				return r.printSession(cmd.OutOrStdout(), sess)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (r *root) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the profile's session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("logged out"))
				return nil
			})
		},
	}
}

func (r *root) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: r.guarded("", func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			sess, _ := a.store.Current()
			return r.printSession(cmd.OutOrStdout(), sess)
		}),
	}
}

// withApp runs fn without restoring the session first.
func (r *root) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := r.app(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

type sessionView struct {
	Session  auth.Session `json:"session"`
	State    string       `json:"state"`
	Redirect string       `json:"redirect"`
}

func (r *root) printSession(w io.Writer, sess auth.Session) error {
	state := auth.StateOf(sess, true).String()
	return r.emit(w, sessionView{Session: sess, State: state, Redirect: sess.Role.Home()}, func(w io.Writer) {
		renderTitle(w, sess.DisplayName)
		renderCards(w, [][2]string{
			{"id", sess.SubjectID},
			{"email", orDash(sess.Email)},
			{"role", sess.Role.String()},
			{"state", state},
			{"home", sess.Role.Home()},
		})
	})
}
