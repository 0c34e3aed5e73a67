package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"studentportal.org/internal/cli"
	"studentportal.org/internal/config"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal/remote"
	"studentportal.org/internal/session"
)

func main() {
	// Stdout belongs to command output; audit lines go to stderr only on request.
	if os.Getenv("PORTAL_CLI_LOG") == "" {
		obs.SetOutput(io.Discard)
	} else {
		obs.SetOutput(os.Stderr)
	}
	if err := cli.NewRootCmd(open).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open dials the services and the local token database for one invocation.
func open(ctx context.Context) (cli.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return cli.Backend{}, err
	}
	if cfg.Backend != config.BackendRemote {
		return cli.Backend{}, errors.New("portalctl needs PORTAL_BACKEND=remote; the memory backend lives inside portal-api")
	}
	clients, err := remote.DialAll(remote.Endpoints{
		Student:    cfg.StudentServiceURL,
		Course:     cfg.CourseServiceURL,
		Enrollment: cfg.EnrollmentServiceURL,
	}, remote.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		return cli.Backend{}, err
	}
	tokens, err := session.OpenSQLite(ctx, cfg.TokenDB)
	if err != nil {
		return cli.Backend{}, err
	}
	return cli.Backend{
		Services: clients.Services(),
		Tokens:   tokens,
		Close: func() error {
			for _, c := range clients.All() {
				_ = c.Close()
			}
			return tokens.Close()
		},
	}, nil
}
