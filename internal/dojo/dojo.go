package dojo

import (
	"context"

	"dojotap/internal/models"
)

// Client defines the upstream API contract consumed by the loader, the sync
// engine, and the logging flow.
type Client interface {
	// FetchBootstrap retrieves and assembles the full aggregate snapshot.
	FetchBootstrap(ctx context.Context) (*models.BootstrapSnapshot, error)

	// FetchPreferences retrieves the current authoritative preference aggregate.
	FetchPreferences(ctx context.Context) (models.Preferences, error)

	// SavePreferences pushes the full aggregate under its last-known version.
	// Returns the server's (possibly normalized) echo on success, or a
	// *ConflictError carrying the latest state on a stale version.
	SavePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error)

	// SubmitProgress logs a count increment and minutes for one task.
	SubmitProgress(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error)

	// FetchTimeline returns raw historical progress entries for a task.
	FetchTimeline(ctx context.Context, taskID string) ([]models.TimelineEntry, error)

	// Login establishes a session from credentials.
	Login(ctx context.Context, email, password string) error

	// Logout revokes the local session.
	Logout(ctx context.Context) error

	// FetchAuthStatus reports whether a usable session exists.
	FetchAuthStatus(ctx context.Context) (*AuthStatus, error)
}

// AuthStatus describes the session lifecycle state.
type AuthStatus struct {
	Authenticated   bool   `json:"authenticated"`
	Username        string `json:"username,omitempty"`
	TokenConfigured bool   `json:"token_configured"`
	ExpiresInSec    int    `json:"expires_in_seconds,omitempty"`
}
