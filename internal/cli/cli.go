// Package cli is the portalctl command tree. Every command restores the profile's
// session from the token store and passes the access gate before it talks to a service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/mutate"
	"studentportal.org/internal/portal"
	"studentportal.org/internal/session"
)

// Backend is what the commands run against.
type Backend struct {
	Services portal.Services
	Tokens   session.TokenStore
	Close    func() error
}

// Opener connects to the services and the token store for one command run.
type Opener func(ctx context.Context) (Backend, error)

// ErrNotLoggedIn is returned by protected commands when the profile has no session.
var ErrNotLoggedIn = errors.New("not logged in; run `portalctl login`")

type root struct {
	open    Opener
	profile string
	json    bool
}

type app struct {
	store   *session.Store
	queries *aggregate.Queries
	ops     *mutate.Ops
	close   func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd(open Opener) *cobra.Command {
	r := &root{open: open}
	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Student portal command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&r.profile, "profile", "default", "session profile name")
	cmd.PersistentFlags().BoolVar(&r.json, "json", false, "print JSON instead of tables")

	cmd.AddCommand(r.newLoginCmd())
	cmd.AddCommand(r.newRegisterCmd())
	cmd.AddCommand(r.newLogoutCmd())
	cmd.AddCommand(r.newWhoamiCmd())
	cmd.AddCommand(r.newDashboardCmd())
	cmd.AddCommand(r.newCoursesCmd())
	cmd.AddCommand(r.newEnrollCmd())
	cmd.AddCommand(r.newDropCmd())
	cmd.AddCommand(r.newMyCoursesCmd())
	cmd.AddCommand(r.newStudentsCmd())
	return cmd
}

func (r *root) app(ctx context.Context) (*app, error) {
	b, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if b.Close == nil {
		b.Close = func() error { return nil }
	}
	queries := aggregate.New(b.Services)
	return &app{
		store:   session.NewStore(b.Services.Identity, b.Tokens, r.profile),
		queries: queries,
		ops:     mutate.New(b.Services, queries),
		close:   b.Close,
	}, nil
}

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

// guarded restores the session, checks it against role and runs fn with the session's
// credentials attached. An empty role admits any session.
func (r *root) guarded(role auth.Role, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return r.withApp(cmd, func(ctx context.Context, a *app) error {
			if _, _, err := a.store.Rehydrate(ctx); err != nil {
				return fmt.Errorf("restore session: %s", portal.UserMessage(err, "services unavailable"))
			}
			if d := auth.NewGate(a.store).Check(role); !d.Allowed {
				return denial(a.store, d, role)
			}
			ctx = a.store.Context(ctx)
			err := a.store.Observe(ctx, fn(ctx, cmd, a, args))
			if errors.Is(err, auth.ErrUnauthenticated) {
				return fmt.Errorf("%w; log in again", err)
			}
			return err
		})
	}
}

func denial(st *session.Store, d auth.Decision, role auth.Role) error {
	if errors.Is(d.Err, auth.ErrUnauthenticated) {
		return ErrNotLoggedIn
	}
	cur, _ := st.Current()
	return fmt.Errorf("%w: this command needs the %s role, logged in as %s", auth.ErrForbidden, role, cur.Role)
}

// userError carries the message a user should see and keeps the cause for errors.Is.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func failed(err error, fallback string) error {
	if err == nil {
		return nil
	}
	return &userError{msg: portal.UserMessage(err, fallback), err: err}
}

// emit writes v as JSON when --json is set and calls render otherwise.
func (r *root) emit(w io.Writer, v any, render func(io.Writer)) error {
	if r.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(w)
	return nil
}
