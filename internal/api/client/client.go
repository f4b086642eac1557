// Package client talks to the multiplayer server's file API. It backs the
// application handle of a remote editor session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client implements the user and file stores of the application handle over
// HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource // optional
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		tokens: cfg.Tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return storage.ErrUserNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: server returned %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func filePath(fileID models.FileID, action string) string {
	return "/api/v1/files/" + url.PathEscape(fileID.String()) + "/" + action
}

// CreateUser registers a new user on the server.
func (c *Client) CreateUser(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/v1/users", map[string]string{"name": name}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser fetches a user record with its presence set.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) EnterFile(ctx context.Context, userID string, fileID models.FileID) error {
	return c.do(ctx, http.MethodPost, filePath(fileID, "enter"), map[string]string{"userId": userID}, nil)
}

func (c *Client) ExitFile(ctx context.Context, userID string, fileID models.FileID) error {
	return c.do(ctx, http.MethodPost, filePath(fileID, "exit"), map[string]string{"userId": userID}, nil)
}

func (c *Client) RecordEdit(ctx context.Context, rec models.EditRecord) error {
	return c.do(ctx, http.MethodPost, filePath(rec.FileID, "edit"), map[string]interface{}{
		"userId":           rec.UserID,
		"sessionStartedAt": rec.SessionStartedAt,
		"fileOpenedAt":     rec.FileOpenedAt,
		"editedAt":         rec.EditedAt,
	}, nil)
}

// CreateFiles imports snapshots as new files owned by ownerID.
func (c *Client) CreateFiles(ctx context.Context, ownerID string, snapshots []models.FileSnapshot) ([]models.FileID, error) {
	var out struct {
		FileIDs []models.FileID `json:"fileIds"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/files", map[string]interface{}{
		"ownerId":   ownerID,
		"snapshots": snapshots,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.FileIDs, nil
}
