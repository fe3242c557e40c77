package dojo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"dojotap/internal/models"
	"dojotap/internal/shared"
)

const defaultBaseURL = "https://api.chessdojo.club"

// HTTPClient implements [Client] against the upstream REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	session    *SessionManager
	limiter    *rate.Limiter
	logger     *log.Logger
	now        func() time.Time
}

// NewHTTPClient creates an upstream client. The rate limit guards against
// hammering the third-party API during bursts of tile taps.
func NewHTTPClient(conf shared.UpstreamConfig, session *SessionManager, httpClient *http.Client, logger *log.Logger) *HTTPClient {
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	rps := conf.RateLimitPerSecond
	if rps <= 0 {
		rps = 4
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		session:    session,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		now:        time.Now,
	}
}

// Session exposes the session manager for auth commands.
func (c *HTTPClient) Session() *SessionManager { return c.session }

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body, result any) error {
	op := fmt.Sprintf("%s %s", method, path)

	if err := c.limiter.Wait(ctx); err != nil {
		// The limiter returns either the context's error or its own early
		// verdict that the wait would outlive the deadline. Both mean the
		// deadline was consumed waiting for a token, which is a timeout,
		// not a network failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if _, ok := ctx.Deadline(); ok {
			return &TimeoutError{Op: op, Err: err}
		}
		return classifyTransportErr(op, err)
	}

	token, err := c.session.BearerToken(ctx)
	if err != nil {
		return err
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{StatusCode: resp.StatusCode, Detail: truncate(string(data), 300)}
	case resp.StatusCode == http.StatusConflict:
		var latest preferencesPayload
		if err := json.Unmarshal(data, &latest); err == nil {
			return &ConflictError{Latest: latest.toModel()}
		}
		return &ConflictError{}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(data), 300)}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// preferencesPayload is the wire shape of the preference aggregate.
type preferencesPayload struct {
	PinnedTaskIDs     []string                           `json:"pinnedTaskIds"`
	TaskUIPreferences map[string]models.TaskUIPreference `json:"taskUiPreferences"`
	Version           int                                `json:"version"`
}

func (p preferencesPayload) toModel() models.Preferences {
	pins := p.PinnedTaskIDs
	if pins == nil {
		pins = []string{}
	}
	prefs := p.TaskUIPreferences
	if prefs == nil {
		prefs = map[string]models.TaskUIPreference{}
	}
	return models.Preferences{PinnedTaskIDs: pins, TaskUIPreferences: prefs, Version: p.Version}
}

func toPayload(prefs models.Preferences) preferencesPayload {
	return preferencesPayload{
		PinnedTaskIDs:     prefs.PinnedTaskIDs,
		TaskUIPreferences: prefs.TaskUIPreferences,
		Version:           prefs.Version,
	}
}

func (c *HTTPClient) fetchUserPayload(ctx context.Context) (map[string]any, error) {
	var userPayload map[string]any
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, &userPayload); err != nil {
		return nil, err
	}
	return userPayload, nil
}

func (c *HTTPClient) fetchRequirements(ctx context.Context) ([]map[string]any, error) {
	var payload struct {
		Requirements []map[string]any `json:"requirements"`
	}
	params := url.Values{"scoreboardOnly": {"false"}}
	if err := c.do(ctx, http.MethodGet, "/requirements/"+models.AllCohorts, params, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Requirements, nil
}

func (c *HTTPClient) fetchCustomAccess(ctx context.Context) (any, error) {
	var payload any
	err := c.do(ctx, http.MethodGet, "/user/access/v2", nil, nil, &payload)
	if err != nil {
		// Users without custom task access get 403/404 here; treat as empty.
		if statusIs(err, http.StatusForbidden, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// FetchBootstrap assembles the aggregate snapshot from the upstream endpoints.
func (c *HTTPClient) FetchBootstrap(ctx context.Context) (*models.BootstrapSnapshot, error) {
	userPayload, err := c.fetchUserPayload(ctx)
	if err != nil {
		return nil, err
	}

	requirements, err := c.fetchRequirements(ctx)
	if err != nil {
		return nil, err
	}

	customAccess, err := c.fetchCustomAccess(ctx)
	if err != nil {
		return nil, err
	}

	prefs, err := c.fetchPreferencesSeeded(ctx, userPayload)
	if err != nil {
		return nil, err
	}

	snapshot := assembleSnapshot(userPayload, requirements, customAccess, prefs, c.now())
	c.logger.Debug("bootstrap assembled", "tasks", len(snapshot.Tasks), "version", snapshot.Version)
	return snapshot, nil
}

// fetchPreferencesSeeded fetches the preference aggregate, seeding pins from
// the user payload's defaults when no aggregate exists yet.
func (c *HTTPClient) fetchPreferencesSeeded(ctx context.Context, userPayload map[string]any) (models.Preferences, error) {
	prefs, err := c.FetchPreferences(ctx)
	if err != nil {
		if statusIs(err, http.StatusNotFound) {
			return models.Preferences{
				PinnedTaskIDs:     defaultPins(userPayload),
				TaskUIPreferences: map[string]models.TaskUIPreference{},
				Version:           1,
			}, nil
		}
		return models.Preferences{}, err
	}
	return prefs, nil
}

// FetchPreferences retrieves the authoritative preference aggregate.
func (c *HTTPClient) FetchPreferences(ctx context.Context) (models.Preferences, error) {
	var payload preferencesPayload
	if err := c.do(ctx, http.MethodGet, "/user/preferences", nil, nil, &payload); err != nil {
		return models.Preferences{}, err
	}
	return payload.toModel(), nil
}

// SavePreferences pushes the aggregate under its last-known version.
func (c *HTTPClient) SavePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	var payload preferencesPayload
	if err := c.do(ctx, http.MethodPut, "/user/preferences", nil, toPayload(prefs), &payload); err != nil {
		return models.Preferences{}, err
	}
	return payload.toModel(), nil
}

// SubmitProgress logs progress for one task. The upstream payload requires
// the previous count, so the current user payload and requirement are fetched
// fresh rather than trusting a possibly stale snapshot.
func (c *HTTPClient) SubmitProgress(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error) {
	userPayload, err := c.fetchUserPayload(ctx)
	if err != nil {
		return nil, err
	}

	requirements, err := c.fetchRequirements(ctx)
	if err != nil {
		return nil, err
	}
	customAccess, err := c.fetchCustomAccess(ctx)
	if err != nil {
		return nil, err
	}

	var startCount int
	found := false
	for _, requirement := range mergeRequirements(requirements, customAccess) {
		if resolveRequirementID(requirement) == req.TaskID {
			startCount = toInt(requirement["startCount"], 0)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, req.TaskID)
	}

	payload := buildProgressPayload(userPayload, req.TaskID, startCount, req.CountIncrement, req.MinutesSpent, c.now())

	var upstream map[string]any
	if err := c.do(ctx, http.MethodPost, "/user/progress/v3", nil, payload, &upstream); err != nil {
		return nil, err
	}

	// Prefer the count echoed by the upstream; fall back to the one we sent.
	newCount := toInt(payload["newCount"], 0)
	if upstream != nil {
		if entry, ok := upstream["progress"].(map[string]any); ok {
			newCount = resolvePreviousCount(entry, firstNonEmptyStr(userPayload, "dojoCohort"), newCount)
		}
	}

	c.logger.Info("progress submitted", "task", req.TaskID, "newCount", newCount, "minutes", req.MinutesSpent)
	return &models.SubmitProgressResult{NewCount: newCount}, nil
}

// FetchTimeline returns raw historical entries for a task.
func (c *HTTPClient) FetchTimeline(ctx context.Context, taskID string) ([]models.TimelineEntry, error) {
	var payload struct {
		Entries []map[string]any `json:"entries"`
	}
	params := url.Values{"requirementId": {taskID}}
	if err := c.do(ctx, http.MethodGet, "/user/timeline", params, nil, &payload); err != nil {
		return nil, err
	}

	entries := make([]models.TimelineEntry, 0, len(payload.Entries))
	for _, raw := range payload.Entries {
		entry := models.TimelineEntry{
			TaskID:        firstNonEmptyStr(raw, "requirementId", "requirement_id"),
			Cohort:        firstNonEmptyStr(raw, "cohort"),
			PreviousCount: toInt(raw["previousCount"], 0),
			NewCount:      toInt(raw["newCount"], 0),
			MinutesSpent:  toInt(raw["minutesSpent"], toInt(raw["incrementalMinutesSpent"], 0)),
			Notes:         firstNonEmptyStr(raw, "notes"),
		}
		if dateStr := firstNonEmptyStr(raw, "date", "createdAt"); dateStr != "" {
			if parsed, err := time.Parse(time.RFC3339, dateStr); err == nil {
				entry.Date = parsed
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Login establishes a session via the session manager.
func (c *HTTPClient) Login(ctx context.Context, email, password string) error {
	return c.session.Login(ctx, email, password)
}

// Logout revokes the local session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// FetchAuthStatus reports the session lifecycle state.
func (c *HTTPClient) FetchAuthStatus(ctx context.Context) (*AuthStatus, error) {
	return c.session.Status(), nil
}

var _ Client = (*HTTPClient)(nil)
