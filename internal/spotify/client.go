// Package spotify reads a user's recently played tracks from the Spotify Web
// API using a long-lived refresh token.
//
// Access tokens are obtained with the refresh-token grant and cached until
// shortly before they expire, so a watch-mode process refreshes about once
// an hour rather than on every render.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/bannergen/internal/remote"
)

// Default endpoints.
const (
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultAPIURL   = "https://api.spotify.com/v1"
)

// MaxLimit is the largest page the recently-played endpoint serves.
const MaxLimit = 50

const maxResponseBytes = 1 << 20

// ErrNoCredentials is returned when any credential is missing.
var ErrNoCredentials = errors.New("spotify credentials not set")

// Credentials authorize the refresh-token grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNoCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Track is one recently played track.
type Track struct {
	Name     string
	Artist   string // first credited artist
	CoverURL string // largest album image
	PlayedAt time.Time
}

// Client talks to the accounts and Web API endpoints.
type Client struct {
	HTTP     *retryablehttp.Client // nil uses remote.DefaultClient
	Creds    Credentials
	TokenURL string // empty means DefaultTokenURL
	APIURL   string // empty means DefaultAPIURL

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// RecentlyPlayed returns the last limit tracks, most recent first.
// limit is clamped to [1, MaxLimit]. A track without an artist or album
// image is an error.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]Track, error) {
	limit = min(max(limit, 1), MaxLimit)

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.apiURL(), "/") + "/me/player/recently-played?limit=" + strconv.Itoa(limit)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("recently played: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	body, err := remote.Do(c.HTTP, req, maxResponseBytes)
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			c.forgetToken()
		}
		return nil, fmt.Errorf("recently played: %w", err)
	}
	return parseRecentlyPlayed(body)
}

// AccessToken returns a cached access token, refreshing it when it is
// missing or about to expire.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if c.token != "" && now.Before(c.expires) {
		return c.token, nil
	}
	if err := c.Creds.validate(); err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.Creds.RefreshToken},
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.Creds.ClientID + ":" + c.Creds.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := remote.Do(c.HTTP, req, maxResponseBytes)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("refresh token: response has no access_token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.token = tr.AccessToken
	c.expires = now.Add(ttl - min(time.Minute, ttl/2))
	return c.token, nil
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

func (c *Client) forgetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return DefaultTokenURL
}

func (c *Client) apiURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return DefaultAPIURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// recentlyPlayedResponse is the subset of the paging object the banner uses.
type recentlyPlayedResponse struct {
	Items []struct {
		PlayedAt time.Time `json:"played_at"`
		Track    struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Images []struct {
					URL    string `json:"url"`
					Width  int    `json:"width"`
					Height int    `json:"height"`
				} `json:"images"`
			} `json:"album"`
		} `json:"track"`
	} `json:"items"`
}

func parseRecentlyPlayed(body []byte) ([]Track, error) {
	var resp recentlyPlayedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing recently played: %w", err)
	}

	tracks := make([]Track, 0, len(resp.Items))
	for i, it := range resp.Items {
		if len(it.Track.Artists) == 0 {
			return nil, fmt.Errorf("track %d %q has no artists", i, it.Track.Name)
		}
		// Spotify lists album images widest first.
		if len(it.Track.Album.Images) == 0 || it.Track.Album.Images[0].URL == "" {
			return nil, fmt.Errorf("track %d %q has no album image", i, it.Track.Name)
		}
		tracks = append(tracks, Track{
			Name:     it.Track.Name,
			Artist:   it.Track.Artists[0].Name,
			CoverURL: it.Track.Album.Images[0].URL,
			PlayedAt: it.PlayedAt,
		})
	}
	return tracks, nil
}
