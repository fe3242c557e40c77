package dojo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

func TestSessionManager(t *testing.T) {
	t.Run("BearerToken", func(t *testing.T) {
		t.Run("No Session Fails With Auth Error", func(t *testing.T) {
			m := NewSessionManager(shared.AuthConfig{}, storage.NewMemoryStore(), nil)
			_, err := m.BearerToken(context.Background())
			if !errors.Is(err, shared.ErrAuthRequired) {
				t.Errorf("expected ErrAuthRequired, got %v", err)
			}
		})

		t.Run("Token Without Expiry Never Refreshes", func(t *testing.T) {
			m := NewSessionManager(shared.AuthConfig{}, storage.NewMemoryStore(), nil)
			m.SetBearerToken("manual-token")

			token, err := m.BearerToken(context.Background())
			if err != nil {
				t.Fatalf("BearerToken failed: %v", err)
			}
			if token != "manual-token" {
				t.Errorf("expected manual-token, got %s", token)
			}
		})

		t.Run("Expired Without Refresh Token Fails", func(t *testing.T) {
			m := NewSessionManager(shared.AuthConfig{}, storage.NewMemoryStore(), nil)
			m.token = &oauth2.Token{
				AccessToken: "stale",
				Expiry:      time.Now().Add(-time.Hour),
			}

			_, err := m.BearerToken(context.Background())
			if !errors.Is(err, shared.ErrAuthRequired) {
				t.Errorf("expected ErrAuthRequired, got %v", err)
			}
		})

		t.Run("Expired With Refresh Token Refreshes", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("bad form: %v", err)
				}
				if got := r.Form.Get("grant_type"); got != "refresh_token" {
					t.Errorf("expected refresh_token grant, got %s", got)
				}
				if got := r.Form.Get("refresh_token"); got != "refresh-1" {
					t.Errorf("expected refresh-1, got %s", got)
				}
				// Cognito-style response: id token, no refresh token echoed.
				json.NewEncoder(w).Encode(map[string]any{
					"id_token":     "fresh-id-token",
					"access_token": "fresh-access-token",
					"expires_in":   3600,
				})
			}))
			defer server.Close()

			m := NewSessionManager(shared.AuthConfig{TokenURL: server.URL}, storage.NewMemoryStore(), nil)
			m.token = &oauth2.Token{
				AccessToken:  "stale",
				RefreshToken: "refresh-1",
				Expiry:       time.Now().Add(-time.Hour),
			}

			token, err := m.BearerToken(context.Background())
			if err != nil {
				t.Fatalf("refresh failed: %v", err)
			}
			if token != "fresh-id-token" {
				t.Errorf("id token should be preferred, got %s", token)
			}
			if m.token.RefreshToken != "refresh-1" {
				t.Errorf("omitted refresh token must be retained, got %s", m.token.RefreshToken)
			}
		})

		t.Run("Failed Refresh Surfaces As Auth Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "refresh rejected", http.StatusBadRequest)
			}))
			defer server.Close()

			m := NewSessionManager(shared.AuthConfig{TokenURL: server.URL}, storage.NewMemoryStore(), nil)
			m.token = &oauth2.Token{
				AccessToken:  "stale",
				RefreshToken: "refresh-1",
				Expiry:       time.Now().Add(-time.Hour),
			}

			if _, err := m.BearerToken(context.Background()); !errors.Is(err, shared.ErrAuthRequired) {
				t.Errorf("expected ErrAuthRequired, got %v", err)
			}
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("Password Grant Persists Session", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("bad form: %v", err)
				}
				if got := r.Form.Get("grant_type"); got != "password" {
					t.Errorf("expected password grant, got %s", got)
				}
				if got := r.Form.Get("username"); got != "user@example.com" {
					t.Errorf("expected username, got %s", got)
				}
				json.NewEncoder(w).Encode(map[string]any{
					"id_token":      "login-token",
					"refresh_token": "refresh-1",
					"expires_in":    3600,
				})
			}))
			defer server.Close()

			mem := storage.NewMemoryStore()
			m := NewSessionManager(shared.AuthConfig{TokenURL: server.URL}, mem, nil)
			if err := m.Login(context.Background(), "user@example.com", "hunter2"); err != nil {
				t.Fatalf("Login failed: %v", err)
			}

			// A second manager over the same storage restores the session.
			restored := NewSessionManager(shared.AuthConfig{TokenURL: server.URL}, mem, nil)
			token, err := restored.BearerToken(context.Background())
			if err != nil {
				t.Fatalf("restored session unusable: %v", err)
			}
			if token != "login-token" {
				t.Errorf("expected restored token, got %s", token)
			}
			if status := restored.Status(); !status.Authenticated || status.Username != "user@example.com" {
				t.Errorf("restored status mangled: %+v", status)
			}
		})

		t.Run("Rejected Credentials Fail", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad credentials", http.StatusUnauthorized)
			}))
			defer server.Close()

			m := NewSessionManager(shared.AuthConfig{TokenURL: server.URL}, storage.NewMemoryStore(), nil)
			err := m.Login(context.Background(), "user@example.com", "wrong")
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Logout Clears Session And Storage", func(t *testing.T) {
		mem := storage.NewMemoryStore()
		m := NewSessionManager(shared.AuthConfig{}, mem, nil)
		m.SetBearerToken("manual-token")

		if err := m.Logout(context.Background()); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if _, err := m.BearerToken(context.Background()); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired after logout, got %v", err)
		}
		if _, ok, _ := mem.Get(sessionSlot); ok {
			t.Error("persisted session should be removed")
		}
	})

	t.Run("Status", func(t *testing.T) {
		t.Run("Reports Remaining Lifetime", func(t *testing.T) {
			m := NewSessionManager(shared.AuthConfig{}, storage.NewMemoryStore(), nil)
			m.token = &oauth2.Token{
				AccessToken: "live",
				Expiry:      time.Now().Add(30 * time.Minute),
			}

			status := m.Status()
			if !status.Authenticated || !status.TokenConfigured {
				t.Errorf("expected authenticated status, got %+v", status)
			}
			if status.ExpiresInSec <= 0 || status.ExpiresInSec > 1800 {
				t.Errorf("implausible expiry: %d", status.ExpiresInSec)
			}
		})

		t.Run("Expired With Refresh Token Still Counts", func(t *testing.T) {
			m := NewSessionManager(shared.AuthConfig{}, storage.NewMemoryStore(), nil)
			m.token = &oauth2.Token{
				AccessToken:  "stale",
				RefreshToken: "refresh-1",
				Expiry:       time.Now().Add(-time.Hour),
			}

			if status := m.Status(); !status.Authenticated {
				t.Error("a refreshable session should report authenticated")
			}
		})

		t.Run("Corrupt Persisted Session Loads As Empty", func(t *testing.T) {
			mem := storage.NewMemoryStore()
			if err := mem.Set(sessionSlot, "{broken"); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			m := NewSessionManager(shared.AuthConfig{}, mem, nil)
			if status := m.Status(); status.TokenConfigured {
				t.Error("corrupt session must not configure a token")
			}
		})
	})
}
