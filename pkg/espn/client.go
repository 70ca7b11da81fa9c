// Package espn provides a read-only client for the ESPN fantasy football v3
// API (lm-api-reads.fantasy.espn.com). Authentication is a stored browser
// session cookie; a stale cookie shows up as a redirect to an HTML login
// page, which the client reports as an error instead of following.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/log"
)

const (
	defaultBaseURL = "https://lm-api-reads.fantasy.espn.com/apis/v3/games/ffl"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/26.1 Safari/605.1.15"

	// maxScoringPeriod caps the per-season week loop; the NFL fantasy
	// regular+postseason never exceeds 18 scoring periods.
	maxScoringPeriod = 18

	bodyPreviewBytes = 200
)

// ResponseError describes a non-JSON or redirect response from ESPN.
// The body preview is capped so login-page HTML never floods logs.
type ResponseError struct {
	Status      int
	FinalURL    string
	Location    string
	ContentType string
	Preview     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected ESPN response: status=%d url=%s location=%s content-type=%s preview=%q",
		e.Status, e.FinalURL, e.Location, e.ContentType, e.Preview)
}

// ClientConfig configures an ESPN API client.
type ClientConfig struct {
	// HTTPClient is the underlying client; a 30s-timeout client is used when nil
	HTTPClient *http.Client
	// BaseURL overrides the API host (tests)
	BaseURL string
	// LeagueID is the ESPN league identifier
	LeagueID string
	// Cookie is the Cookie header value sent with every request
	Cookie string
}

// Client is a read-only ESPN fantasy API client for a single league.
type Client struct {
	httpClient *http.Client
	baseURL    string
	leagueID   string
	cookie     string
}

// NewClient creates an ESPN client. Redirects are never followed: ESPN
// answers requests with an expired cookie by redirecting to a login page,
// and the caller needs to see that, not the page.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		leagueID:   cfg.LeagueID,
		cookie:     cfg.Cookie,
	}
}

// LoadCookie reads the stored session cookie from a file. In passthrough
// mode the stored header is sent verbatim (newlines stripped); otherwise
// only the espn_s2 and SWID pairs are extracted.
func LoadCookie(path string, passthrough bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file: %w", err)
	}

	raw := strings.TrimSpace(strings.NewReplacer("\n", "", "\r", "").Replace(string(data)))
	if raw == "" {
		return "", fmt.Errorf("cookie file %s is empty", path)
	}

	if passthrough {
		return raw, nil
	}

	cookie := NormalizeCookie(raw)
	if cookie == "" {
		return "", fmt.Errorf("cookie file %s has no espn_s2 or SWID values", path)
	}
	return cookie, nil
}

// NormalizeCookie extracts the espn_s2 and SWID pairs from a raw cookie
// header, espn_s2 first. A leading "Cookie:" prefix is tolerated.
func NormalizeCookie(rawCookie string) string {
	raw := strings.TrimSpace(rawCookie)
	if strings.HasPrefix(strings.ToLower(raw), "cookie:") {
		raw = strings.TrimSpace(raw[strings.Index(raw, ":")+1:])
	}
	raw = strings.Join(strings.Fields(raw), " ")

	values := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "espn_s2" || key == "SWID" {
			values[key] = strings.TrimSpace(value)
		}
	}

	var ordered []string
	if v, ok := values["espn_s2"]; ok {
		ordered = append(ordered, "espn_s2="+v)
	}
	if v, ok := values["SWID"]; ok {
		ordered = append(ordered, "SWID="+v)
	}
	return strings.Join(ordered, "; ")
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("User-Agent", browserUserAgent)
	h.Set("Referer", fmt.Sprintf("https://fantasy.espn.com/football/league?leagueId=%s", c.leagueID))
	h.Set("Origin", "https://fantasy.espn.com")
	if c.cookie != "" {
		h.Set("Cookie", c.cookie)
	}
	return h
}

type endpoint struct {
	url    string
	params url.Values
}

// endpoints returns the two URL forms ESPN serves a season's league data
// from: the per-season segment URL for current seasons and the
// leagueHistory URL for archived ones. Callers try them in order.
func (c *Client) endpoints(season int) []endpoint {
	seasonParams := url.Values{}
	historyParams := url.Values{}
	historyParams.Set("seasonId", strconv.Itoa(season))

	return []endpoint{
		{url: fmt.Sprintf("%s/seasons/%d/segments/0/leagues/%s", c.baseURL, season, c.leagueID), params: seasonParams},
		{url: fmt.Sprintf("%s/leagueHistory/%s", c.baseURL, c.leagueID), params: historyParams},
	}
}

// fetchJSON performs a GET and decodes the JSON body. A redirect status or
// non-JSON content type yields a *ResponseError.
func (c *Client) fetchJSON(ctx context.Context, rawURL string, params url.Values, extraHeaders map[string]string) (any, error) {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ESPN request: %w", err)
	}
	req.Header = c.headers()
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ESPN request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ESPN response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound ||
		!strings.Contains(contentType, "application/json") {
		return nil, responseError(resp, body)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, responseError(resp, body)
	}
	return payload, nil
}

func responseError(resp *http.Response, body []byte) error {
	preview := string(body)
	if len(preview) > bodyPreviewBytes {
		preview = preview[:bodyPreviewBytes]
	}
	return &ResponseError{
		Status:      resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		Location:    resp.Header.Get("Location"),
		ContentType: resp.Header.Get("Content-Type"),
		Preview:     preview,
	}
}

// unwrap flattens the single-element array the leagueHistory endpoint
// wraps its payload in.
func unwrap(payload any) any {
	if list, ok := payload.([]any); ok && len(list) > 0 {
		return list[0]
	}
	return payload
}

func asObject(payload any) map[string]any {
	obj, _ := payload.(map[string]any)
	return obj
}

// Settings fetches a season's league settings (view mSettings).
// Both endpoint forms are tried; a payload is accepted once it carries a
// status object.
func (c *Client) Settings(ctx context.Context, season int) (map[string]any, error) {
	var lastErr error
	for _, ep := range c.endpoints(season) {
		params := cloneValues(ep.params)
		params.Set("view", "mSettings")

		payload, err := c.fetchJSON(ctx, ep.url, params, nil)
		if err != nil {
			lastErr = err
			continue
		}
		obj := asObject(unwrap(payload))
		if obj != nil && obj["status"] != nil {
			return obj, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]any{}, nil
}

// FinalScoringPeriod extracts the last completed scoring period from a
// settings payload, falling back to currentMatchupPeriod and clamping to
// the 1..18 range.
func FinalScoringPeriod(settings map[string]any) int {
	status := asObject(settings["status"])
	period := numberField(status, "finalScoringPeriod")
	if period == 0 {
		period = numberField(status, "currentMatchupPeriod")
	}
	if period == 0 {
		period = maxScoringPeriod
	}
	if period < 1 {
		period = 1
	}
	if period > maxScoringPeriod {
		period = maxScoringPeriod
	}
	return period
}

func numberField(obj map[string]any, key string) int {
	if obj == nil {
		return 0
	}
	if f, ok := obj[key].(float64); ok {
		return int(f)
	}
	return 0
}

// Teams fetches a season's teams and members (view mTeam).
func (c *Client) Teams(ctx context.Context, season int) (map[string]any, error) {
	var lastErr error
	for _, ep := range c.endpoints(season) {
		params := cloneValues(ep.params)
		params.Set("view", "mTeam")

		payload, err := c.fetchJSON(ctx, ep.url, params, nil)
		if err != nil {
			lastErr = err
			continue
		}
		obj := asObject(unwrap(payload))
		if obj != nil && obj["teams"] != nil {
			return obj, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]any{}, nil
}

// transactionFilter is the X-Fantasy-Filter fallback used when the plain
// view returns nothing; it widens the page to 2000 entries.
var transactionFilter = map[string]any{
	"transactions": map[string]any{"limit": 2000, "offset": 0},
}

// Transactions fetches one scoring period's transactions. ESPN serves
// them under different views depending on season age, so mTransactions2
// is tried before mTransactions, each without and then with the filter
// header, against both endpoint forms. The view that produced data is
// returned alongside the entries.
func (c *Client) Transactions(ctx context.Context, season, scoringPeriod int) ([]map[string]any, string, error) {
	views := []string{"mTransactions2", "mTransactions"}
	filters := []map[string]any{nil, transactionFilter}

	var lastErr error
	for _, ep := range c.endpoints(season) {
		for _, view := range views {
			for _, filter := range filters {
				params := cloneValues(ep.params)
				params.Set("view", view)
				params.Set("scoringPeriodId", strconv.Itoa(scoringPeriod))

				var extra map[string]string
				if filter != nil {
					encoded, err := json.Marshal(filter)
					if err != nil {
						return nil, "", fmt.Errorf("failed to encode fantasy filter: %w", err)
					}
					extra = map[string]string{"X-Fantasy-Filter": string(encoded)}
				}

				payload, err := c.fetchJSON(ctx, ep.url, params, extra)
				if err != nil {
					lastErr = err
					continue
				}

				obj := asObject(unwrap(payload))
				if obj == nil {
					continue
				}
				items, _ := obj["transactions"].([]any)
				if len(items) == 0 {
					continue
				}

				transactions := make([]map[string]any, 0, len(items))
				for _, item := range items {
					if tx, ok := item.(map[string]any); ok {
						transactions = append(transactions, tx)
					}
				}
				return transactions, view, nil
			}
		}
	}

	if lastErr != nil {
		log.WithError(lastErr).WithFields(map[string]interface{}{
			"season":         season,
			"scoring_period": scoringPeriod,
		}).Debug("transaction fetch exhausted view fallbacks")
		return nil, "", lastErr
	}
	return nil, "", nil
}

// Rosters fetches a week's matchup and roster data (views mMatchup,
// mMatchupScore, mTeam, mRoster) from the per-season endpoint.
func (c *Client) Rosters(ctx context.Context, season, week int) (map[string]any, error) {
	params := url.Values{}
	for _, view := range []string{"mMatchup", "mMatchupScore", "mTeam", "mRoster"} {
		params.Add("view", view)
	}
	params.Set("scoringPeriodId", strconv.Itoa(week))

	u := fmt.Sprintf("%s/seasons/%d/segments/0/leagues/%s", c.baseURL, season, c.leagueID)
	payload, err := c.fetchJSON(ctx, u, params, nil)
	if err != nil {
		return nil, err
	}
	return asObject(unwrap(payload)), nil
}

// Ping issues a settings request for the given season to verify the league
// is reachable with the configured cookie.
func (c *Client) Ping(ctx context.Context, season int) error {
	_, err := c.Settings(ctx, season)
	return err
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		for _, val := range vals {
			out.Add(k, val)
		}
	}
	return out
}
