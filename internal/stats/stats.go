// Package stats queries an external player-stats HTTP API. It is a narrow
// collaborator: one lookup call returning a small stats record, consumed by
// the rank command handler.
package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public stats API endpoint.
const DefaultBaseURL = "https://owapi.net"

// requestTimeout bounds a single stats lookup. The dispatcher executes
// handlers serially, so a slow lookup stalls the queue; the timeout keeps
// that stall finite.
const requestTimeout = 10 * time.Second

// regions are probed in order; the first one carrying stats wins.
var regions = []string{"us", "eu", "kr"}

// PlayerStats is the result of one stats lookup.
type PlayerStats struct {
	Rank   int64
	Level  int64
	Wins   int64
	Losses int64
	Elims  int64
	Deaths int64
}

// Client queries the stats API. Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// ClientOption customises a [Client].
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpc = c }
}

// NewClient creates a stats client for the API at baseURL. An empty baseURL
// selects [DefaultBaseURL].
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetStats looks up the stats record for identity (e.g. a battle tag,
// "name-1234"). It returns nil with no error when the API has no record for
// the identity.
func (c *Client) GetStats(ctx context.Context, identity string) (*PlayerStats, error) {
	url := fmt.Sprintf("%s/api/v3/u/%s/stats", c.baseURL, identity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats: request %q: %w", identity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats: request %q: unexpected status %s", identity, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stats: read response: %w", err)
	}
	return parseStats(body), nil
}

// parseStats extracts the stats record from the API response. The document
// nests stats per region and per mode; competitive stats are preferred with
// a quickplay fallback. Returns nil when no region carries stats.
func parseStats(body []byte) *PlayerStats {
	doc := gjson.ParseBytes(body)

	for _, region := range regions {
		node := doc.Get(region + ".stats")
		if !node.Exists() {
			continue
		}

		mode := node.Get("competitive")
		rank := mode.Get("overall_stats.comprank")
		if !mode.Exists() || !rank.Exists() {
			mode = node.Get("quickplay")
			if !mode.Exists() {
				continue
			}
			rank = gjson.Result{} // quickplay has no rank
		}

		level := mode.Get("overall_stats.level").Int() +
			mode.Get("overall_stats.prestige").Int()*100

		return &PlayerStats{
			Rank:   rank.Int(),
			Level:  level,
			Wins:   mode.Get("overall_stats.wins").Int(),
			Losses: mode.Get("overall_stats.losses").Int(),
			Elims:  mode.Get("game_stats.eliminations").Int(),
			Deaths: mode.Get("game_stats.deaths").Int(),
		}
	}
	return nil
}

// FormatLine renders the one-line chat reply for a stats record.
func FormatLine(identity string, s *PlayerStats) string {
	return fmt.Sprintf("%s: SR:%d LVL:%d W/L: %d/%d K/D: %d/%d",
		identity, s.Rank, s.Level, s.Wins, s.Losses, s.Elims, s.Deaths)
}
