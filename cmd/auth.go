package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"dojotap/internal/shared"
)

// AuthLogin signs in with email and password and persists the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	email := cmd.String("email")
	password := cmd.String("password")

	r.logger.Info("signing in", "email", email)

	if err := r.client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.logger.Info("authentication successful")
	return r.writePlain("✓ Signed in as %s\n", email)
}

// AuthLogout discards the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	if err := r.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	return r.writePlain("✓ Signed out\n")
}

// AuthStatus shows the current session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	status, err := r.client.FetchAuthStatus(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if status.Authenticated {
		r.writePlain("Authentication: ✓ Authenticated\n")
		if status.Username != "" {
			r.writePlain("User: %s\n", status.Username)
		}
		if status.ExpiresInSec > 0 {
			r.writePlain("Token expires in: %ds\n", status.ExpiresInSec)
		}
		return nil
	}

	r.writePlain("Authentication: ✗ Not authenticated\n")
	if !status.TokenConfigured {
		r.writePlain("Run 'dojotap auth login' or 'dojotap auth token --from-curl <file>'\n")
	}
	return nil
}

// AuthOpen opens the hosted sign-in page so a bearer token can be captured
// from browser DevTools.
func (r *Runner) AuthOpen(ctx context.Context, cmd *cli.Command) error {
	if r.session == nil {
		return fmt.Errorf("%w: session manager not initialized", shared.ErrServiceUnavailable)
	}

	url := r.session.AuthURL(shared.GenerateID())
	r.logger.Info("opening sign-in page", "url", url)

	if err := shared.OpenBrowser(url); err != nil {
		r.writePlain("Could not open a browser. Visit:\n%s\n", url)
		return nil
	}

	r.writePlain("Opened the sign-in page in your browser.\n")
	r.writePlain("After signing in, copy a request as cURL and run 'dojotap auth token --from-curl <file>'\n")
	return nil
}

// AuthToken installs a bearer token captured from browser DevTools.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if r.session == nil {
		return fmt.Errorf("%w: session manager not initialized", shared.ErrServiceUnavailable)
	}

	curlFile := cmd.String("from-curl")
	value := cmd.String("value")

	if curlFile == "" && value == "" {
		return fmt.Errorf("%w: either --from-curl or --value must be provided", shared.ErrInvalidArgument)
	}
	if curlFile != "" && value != "" {
		return fmt.Errorf("%w: cannot specify both --from-curl and --value", shared.ErrInvalidArgument)
	}

	var token string
	if curlFile != "" {
		if _, err := os.Stat(curlFile); err != nil {
			return fmt.Errorf("cannot read cURL file: %w", err)
		}
		extracted, err := shared.ExtractBearerFromCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to extract token: %w", err)
		}
		token = extracted
		r.logger.Info("extracted bearer token from cURL file", "file", curlFile)
	} else {
		token = shared.NormalizeBearerToken(value)
	}

	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: empty bearer token", shared.ErrInvalidArgument)
	}

	r.session.SetBearerToken(token)
	r.logger.Info("bearer token installed")

	return r.writePlain("✓ Bearer token installed\n")
}
