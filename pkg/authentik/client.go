// Package authentik is a minimal client for the Authentik user API, covering
// the find/create/check-access contract the bridge needs to provision users
// from Telegram logins. Authentik is treated as an opaque remote service.
package authentik

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/telebridge/telebridge/pkg/telegram"
)

const requestTimeout = 10 * time.Second

type User struct {
	PK         int            `json:"pk"`
	Username   string         `json:"username"`
	Name       string         `json:"name"`
	IsActive   bool           `json:"is_active"`
	Attributes map[string]any `json:"attributes"`
}

type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

func NewClient(baseURL, apiToken string) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/") + "/api/v3",
		apiToken: apiToken,
		http:     httpClient,
	}
}

type listResponse struct {
	Results []User `json:"results"`
}

// FindUserByTelegramUsername looks a user up first by the telegram_username
// attribute, then by plain username. A nil user without error means no match.
func (c *Client) FindUserByTelegramUsername(ctx context.Context, username string) (*User, error) {
	byAttribute := url.Values{"attributes": {"telegram_username=" + username}}
	user, err := c.findUser(ctx, byAttribute)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	return c.findUser(ctx, url.Values{"username": {username}})
}

func (c *Client) findUser(ctx context.Context, query url.Values) (*User, error) {
	var list listResponse
	if err := c.do(ctx, http.MethodGet, "/core/users/?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Results) == 0 {
		return nil, nil
	}
	return &list.Results[0], nil
}

// CreateUserFromTelegram provisions a new active user carrying the Telegram
// identity in its attributes.
func (c *Client) CreateUserFromTelegram(ctx context.Context, login *telegram.LoginData) (*User, error) {
	record := login.UserRecord()

	body := map[string]any{
		"username":  record.PreferredUsername,
		"name":      record.Name,
		"is_active": true,
		"attributes": map[string]any{
			"telegram_id":        login.ID,
			"telegram_username":  login.Username,
			"telegram_photo_url": login.PhotoURL,
		},
	}

	var user User
	if err := c.do(ctx, http.MethodPost, "/core/users/", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckUserAccess reports whether the user may complete the federated login.
func (c *Client) CheckUserAccess(ctx context.Context, pk int) (bool, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/core/users/%d/", pk), nil, &user); err != nil {
		return false, err
	}
	return user.IsActive, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call authentik: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("authentik returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode authentik response: %w", err)
		}
	}
	return nil
}
