package dojo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

const sessionSlot = "session"

// refreshSkew refreshes tokens slightly before their reported expiry so a
// request never races the cutoff.
const refreshSkew = 60 * time.Second

// SessionManager owns the upstream OAuth2 session: password login, refresh
// grants, and persistence of the token to local storage so a session survives
// process restarts.
type SessionManager struct {
	conf       *oauth2.Config
	store      storage.Store
	httpClient *http.Client
	now        func() time.Time

	token    *oauth2.Token
	username string
}

type persistedSession struct {
	Token    *oauth2.Token `json:"token"`
	Username string        `json:"username"`
}

// NewSessionManager creates a SessionManager backed by the given storage.
// A previously persisted session is restored if one exists.
func NewSessionManager(conf shared.AuthConfig, store storage.Store, httpClient *http.Client) *SessionManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	m := &SessionManager{
		conf: &oauth2.Config{
			ClientID:    conf.ClientID,
			RedirectURL: conf.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  conf.AuthorizeURL,
				TokenURL: conf.TokenURL,
			},
		},
		store:      store,
		httpClient: httpClient,
		now:        time.Now,
	}
	m.restore()
	return m
}

// restore loads a persisted session, tolerating absence or corruption.
func (m *SessionManager) restore() {
	raw, ok, err := m.store.Get(sessionSlot)
	if err != nil || !ok {
		return
	}
	var sess persistedSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.Token == nil {
		return
	}
	m.token = sess.Token
	m.username = sess.Username
}

func (m *SessionManager) persist() {
	data, err := json.Marshal(persistedSession{Token: m.token, Username: m.username})
	if err != nil {
		return
	}
	// Storage failures leave the in-memory session authoritative.
	_ = m.store.Set(sessionSlot, string(data))
}

// Login performs a resource-owner password grant against the token endpoint
// and persists the resulting session.
func (m *SessionManager) Login(ctx context.Context, email, password string) error {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {m.conf.ClientID},
		"username":   {email},
		"password":   {password},
	}

	token, err := m.exchange(ctx, form)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	m.token = token
	m.username = email
	m.persist()
	return nil
}

// SetBearerToken installs a manually obtained token (e.g. extracted from a
// copied browser cURL command). No refresh token accompanies it, so the
// session lasts until the token expires.
func (m *SessionManager) SetBearerToken(raw string) {
	m.token = &oauth2.Token{AccessToken: shared.NormalizeBearerToken(raw)}
	m.persist()
}

// Logout discards the session locally. The upstream has no revocation call
// for password-grant sessions.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.token = nil
	m.username = ""
	if err := m.store.Remove(sessionSlot); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// BearerToken returns a currently valid access token, refreshing via the
// stored refresh token when the access token is expired or about to expire.
func (m *SessionManager) BearerToken(ctx context.Context) (string, error) {
	if m.token == nil || m.token.AccessToken == "" {
		return "", &AuthError{StatusCode: http.StatusUnauthorized, Detail: "no session, sign in first"}
	}

	if m.token.Expiry.IsZero() || m.now().Add(refreshSkew).Before(m.token.Expiry) {
		return m.token.AccessToken, nil
	}

	if m.token.RefreshToken == "" {
		return "", &AuthError{StatusCode: http.StatusUnauthorized, Detail: shared.ErrNoRefreshToken.Error()}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.conf.ClientID},
		"refresh_token": {m.token.RefreshToken},
	}

	token, err := m.exchange(ctx, form)
	if err != nil {
		return "", &AuthError{StatusCode: http.StatusUnauthorized, Detail: fmt.Sprintf("%v: %v", shared.ErrRefreshFailed, err)}
	}

	// Cognito-style refresh responses omit the refresh token; keep the old one.
	if token.RefreshToken == "" {
		token.RefreshToken = m.token.RefreshToken
	}
	m.token = token
	m.persist()
	return m.token.AccessToken, nil
}

// Status reports the session lifecycle state without performing a refresh.
func (m *SessionManager) Status() *AuthStatus {
	status := &AuthStatus{}
	if m.token == nil || m.token.AccessToken == "" {
		return status
	}
	status.TokenConfigured = true
	status.Username = m.username
	if m.token.Expiry.IsZero() {
		status.Authenticated = true
		return status
	}
	remaining := m.token.Expiry.Sub(m.now())
	if remaining > 0 {
		status.Authenticated = true
		status.ExpiresInSec = int(remaining.Seconds())
	} else {
		status.Authenticated = m.token.RefreshToken != ""
	}
	return status
}

// AuthURL returns the hosted sign-in page URL for browser-based login.
func (m *SessionManager) AuthURL(state string) string {
	return m.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (m *SessionManager) exchange(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.conf.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr("token exchange", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	// The upstream authorizes with the id token when one is issued.
	access := payload.IDToken
	if access == "" {
		access = payload.AccessToken
	}
	if access == "" {
		return nil, fmt.Errorf("token response carried no usable token")
	}

	expiresIn := payload.ExpiresIn
	if expiresIn < 60 {
		expiresIn = 3600
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: payload.RefreshToken,
		Expiry:       m.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
