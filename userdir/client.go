// Package userdir is the client for the user-directory collaborator. It
// serves profile/status enrichment for presence snapshots, the
// ignore-relationship check guarding private sends, and guest-account
// cleanup. All calls are bounded by the configured timeout; after a
// failure the client reports itself unavailable for a cooldown period so
// a slow directory cannot stall every snapshot in a row.
package userdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
)

// Profile is the directory's view of a user, used to enrich the
// active-users snapshot.
type Profile struct {
	Id        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarUrl string `json:"avatar_url"`
	Gender    string `json:"gender"`
	IsGuest   bool   `json:"is_guest"`
}

// envelope is the collaborator's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL  string
	http     *http.Client
	cooldown time.Duration

	mu             sync.Mutex
	unhealthyUntil time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:  cfg.UserDirConfig.BaseURL,
		http:     &http.Client{Timeout: cfg.UserDirConfig.Timeout},
		cooldown: cfg.UserDirConfig.FailureCooldown,
	}
}

// Available reports whether the directory should be consulted at all.
// False while unconfigured or inside the failure cooldown window.
func (c *Client) Available() bool {
	if c.baseURL == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().After(c.unhealthyUntil)
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.unhealthyUntil = time.Now().Add(c.cooldown)
	c.mu.Unlock()
	globals.AppLogger.Warn("user directory unavailable, backing off", "error", err, "cooldown", c.cooldown)
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("user directory returned %s", resp.Status)
		c.fail(err)
		return err
	}
	env := envelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Profile fetches the full profile of a user.
func (c *Client) Profile(ctx context.Context, userId int64) (*Profile, error) {
	profile := Profile{}
	err := c.get(ctx, "/api/users/profile/"+strconv.FormatInt(userId, 10), nil, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Status fetches the user's self-selected presence status (e.g. ONLINE,
// AWAY, BUSY).
func (c *Client) Status(ctx context.Context, userId int64) (string, error) {
	status := ""
	err := c.get(ctx, "/api/users/presence/"+strconv.FormatInt(userId, 10), nil, &status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// IsIgnored reports whether ignorer has ignored target. A technical
// failure is returned as an error, the send path decides the policy
// fallback.
func (c *Client) IsIgnored(ctx context.Context, ignorerId, targetId int64) (bool, error) {
	if c.baseURL == "" {
		return false, nil
	}
	ignored := false
	headers := map[string]string{"X-User-Id": strconv.FormatInt(ignorerId, 10)}
	err := c.get(ctx, "/api/users/ignore/status/"+strconv.FormatInt(targetId, 10), headers, &ignored)
	if err != nil {
		return false, err
	}
	return ignored, nil
}

// DeleteGuest removes an ephemeral guest account after the guest's last
// session disconnected. Best effort, failures are logged by the caller.
func (c *Client) DeleteGuest(ctx context.Context, userId int64) error {
	if c.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/users/guest/"+strconv.FormatInt(userId, 10), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("user directory returned %s", resp.Status)
	}
	return nil
}
