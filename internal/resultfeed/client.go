// Package resultfeed talks to the Clash Royale public API.
package resultfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wager-royale/backend/internal/battlelog"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.clashroyale.com"

// maxBodyBytes caps how much of a response we read into memory.
const maxBodyBytes = 4 << 20

type Options struct {
	BaseURL        string
	Token          string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// Client is a stateless adapter over the feed's REST endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   strings.TrimSpace(opts.Token),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		log: log.Named("resultfeed"),
	}
}

// BattleLog returns the recent battles of a player, newest first as the feed sends them.
func (c *Client) BattleLog(ctx context.Context, tag string) ([]battlelog.Battle, error) {
	normalized, err := battlelog.NormalizeTag(tag)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/v1/players/%s/battlelog", url.PathEscape(normalized))

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	battles, err := battlelog.ParseHistory(body)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	c.log.Debug("battlelog fetched", zap.String("tag", normalized), zap.Int("count", len(battles)))
	return battles, nil
}

type CardIconURLs struct {
	Medium          string `json:"medium,omitempty"`
	Large           string `json:"large,omitempty"`
	EvolutionMedium string `json:"evolutionMedium,omitempty"`
}

type CardInfo struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	MaxLevel int          `json:"maxLevel"`
	IconURLs CardIconURLs `json:"iconUrls"`
}

// IconURL prefers medium, then large, then any other variant.
func (c CardInfo) IconURL() string {
	switch {
	case c.IconURLs.Medium != "":
		return c.IconURLs.Medium
	case c.IconURLs.Large != "":
		return c.IconURLs.Large
	default:
		return c.IconURLs.EvolutionMedium
	}
}

type cardsResponse struct {
	Items []CardInfo `json:"items"`
}

func (c *Client) Cards(ctx context.Context) ([]CardInfo, error) {
	const path = "/v1/cards"
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var resp cardsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return resp.Items, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if c.token == "" {
		return nil, &ConfigError{Msg: "CLASH_ROYALE_API_TOKEN is missing"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &HTTPError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &HTTPError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		c.log.Warn("result feed error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
