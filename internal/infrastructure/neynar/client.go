// Package neynar looks up Farcaster accounts through the Neynar API.
package neynar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vcscout/internal/config"
	"vcscout/internal/ports"
)

// Client implements ports.SocialSearcher against the Neynar user search
// endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.SocialSearcher = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.FarcasterConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type searchResponse struct {
	Result struct {
		Users []struct {
			FID         int64  `json:"fid"`
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Profile     struct {
				Bio struct {
					Text string `json:"text"`
				} `json:"bio"`
			} `json:"profile"`
			Verifications []string `json:"verifications"`
		} `json:"users"`
	} `json:"result"`
}

// Search queries Neynar for users matching the free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]ports.SocialProfile, error) {
	if c == nil {
		return nil, fmt.Errorf("neynar client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("neynar client misconfigured")
	}
	if limit <= 0 {
		limit = 5
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse neynar endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search neynar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("neynar error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode neynar response: %w", err)
	}

	profiles := make([]ports.SocialProfile, 0, len(parsed.Result.Users))
	for _, user := range parsed.Result.Users {
		profiles = append(profiles, ports.SocialProfile{
			Username:          user.Username,
			ProfileID:         strconv.FormatInt(user.FID, 10),
			DisplayName:       user.DisplayName,
			Bio:               user.Profile.Bio.Text,
			VerifiedAddresses: user.Verifications,
		})
	}
	return profiles, nil
}
