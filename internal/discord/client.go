package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"steam-party-bot/internal/config"
)

// ErrStaleToken is returned when a webhook edit fails because the
// interaction token's validity window (about 15 minutes) has passed.
// Callers must treat it as terminal for that message; there is no retry.
var ErrStaleToken = errors.New("interaction token is no longer valid")

// Client calls the Discord HTTP API: webhook follow-ups and edits keyed by
// interaction token, plus the bot-token endpoints used at registration
// time. No call is retried.
type Client struct {
	appID    string
	botToken string
	apiBase  string
	http     *http.Client
}

// NewClient creates a Discord API client.
func NewClient(cfg *config.DiscordConfig) *Client {
	return &Client{
		appID:    cfg.AppID,
		botToken: cfg.BotToken,
		apiBase:  cfg.APIBase,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateFollowup posts an additional message under an interaction token.
// Used for the ephemeral leader controls after the party announcement.
func (c *Client) CreateFollowup(ctx context.Context, token string, data *ResponseData) error {
	endpoint := fmt.Sprintf("%s/webhooks/%s/%s", c.apiBase, c.appID, token)
	return c.do(ctx, http.MethodPost, endpoint, data)
}

// EditOriginal patches the original interaction response in place.
func (c *Client) EditOriginal(ctx context.Context, token string, data *ResponseData) error {
	endpoint := fmt.Sprintf("%s/webhooks/%s/%s/messages/@original", c.apiBase, c.appID, token)
	return c.do(ctx, http.MethodPatch, endpoint, data)
}

// Command describes a slash command for registration.
type Command struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Type             int    `json:"type"`
	IntegrationTypes []int  `json:"integration_types,omitempty"`
	Contexts         []int  `json:"contexts,omitempty"`
}

// RegisterGlobalCommands overwrites the application's global slash
// commands. Requires the bot token.
func (c *Client) RegisterGlobalCommands(ctx context.Context, commands []Command) error {
	endpoint := fmt.Sprintf("%s/applications/%s/commands", c.apiBase, c.appID)

	body, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("failed to encode commands: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build command registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.botToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("command registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("command registration returned %s: %s", resp.Status, detail)
	}

	return nil
}

// Connection is an external account linked to a Discord user.
type Connection struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CurrentUser fetches the user identity for a bearer access token.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.getBearer(ctx, accessToken, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUserConnections fetches the linked external accounts for a
// bearer access token. Requires the connections OAuth scope.
func (c *Client) CurrentUserConnections(ctx context.Context, accessToken string) ([]Connection, error) {
	var connections []Connection
	if err := c.getBearer(ctx, accessToken, "/users/@me/connections", &connections); err != nil {
		return nil, err
	}
	return connections, nil
}

// getBearer performs an authorized GET and decodes the JSON response.
func (c *Client) getBearer(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord api returned %s for %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode discord api response: %w", err)
	}

	return nil
}

// do sends a webhook request with an optional JSON body.
func (c *Client) do(ctx context.Context, method, endpoint string, data *ResponseData) error {
	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode webhook payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	// Expired tokens come back as 401/404 once the validity window passes.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrStaleToken, method, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook request returned %s: %s", resp.Status, detail)
	}

	return nil
}
