// Package fetch calls the structured data providers selected by the matcher.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/polyinsider/wwatcher/internal/provider"
)

const (
	// StatusOK marks a fetch that returned a 2xx response.
	StatusOK = "ok"
	// StatusError marks a fetch that failed for any reason.
	StatusError = "error"

	// DefaultRPS and DefaultBurst pace outbound provider requests.
	DefaultRPS   = 5
	DefaultBurst = 5

	maxBodyBytes      = 10 << 20
	maxErrorBodyChars = 300
)

// Result is the outcome of one provider call. Data holds the response body
// verbatim when it is JSON, otherwise the body as a JSON string.
type Result struct {
	Provider   string          `json:"provider"`
	Key        string          `json:"key"`
	Category   string          `json:"category"`
	Endpoint   string          `json:"endpoint,omitempty"`
	Status     string          `json:"status"`
	HTTPStatus int             `json:"http_status,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Client calls RapidAPI-hosted providers using the metadata in the catalog.
type Client struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a RapidAPI client authenticating with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// BuildRequest builds the HTTP request for the provider's automatic
// endpoint, substituting {query}, {title} and {keyword} from the match.
// It returns the endpoint name alongside the request.
func (c *Client) BuildRequest(ctx context.Context, m provider.Match, title string) (*http.Request, string, error) {
	p := m.Provider
	base := p.URL()
	if base == "" {
		return nil, "", fmt.Errorf("provider %q has no host or base_url", p.Key)
	}

	name, ep, ok := p.Endpoint()
	if !ok && p.DefaultEndpoint != "" {
		return nil, "", fmt.Errorf("provider %q: unknown default endpoint %q", p.Key, p.DefaultEndpoint)
	}

	vars := placeholders(m, title)

	u, err := url.Parse(strings.TrimRight(base, "/") + expand(ep.Path, vars, url.PathEscape))
	if err != nil {
		return nil, "", fmt.Errorf("build url: %w", err)
	}

	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}

	params := make(map[string]string, len(ep.Params))
	for k, v := range ep.Params {
		params[k] = expand(v, vars, nil)
	}

	var body io.Reader
	switch method {
	case http.MethodGet:
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	default:
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode params: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, "", fmt.Errorf("create request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	if p.Host != "" {
		req.Header.Set("X-RapidAPI-Host", p.Host)
	}

	return req, name, nil
}

// Fetch calls the provider once. Failures are reported in the Result, never
// returned, so one provider cannot abort the others.
func (c *Client) Fetch(ctx context.Context, m provider.Match, title string) (res Result) {
	start := time.Now()
	res = Result{
		Provider: m.Provider.Name,
		Key:      m.Provider.Key,
		Category: m.Provider.Category,
		Status:   StatusError,
	}
	defer func() {
		res.DurationMS = time.Since(start).Milliseconds()
	}()

	req, endpoint, err := c.BuildRequest(ctx, m, title)
	res.Endpoint = endpoint
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if err := c.limiter.Wait(ctx); err != nil {
		res.Error = fmt.Sprintf("rate limiter: %v", err)
		return res
	}

	c.logger.Debug("provider_fetch_started", "provider", m.Provider.Key, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Error = fmt.Sprintf("request failed: %v", err)
		return res
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		res.Error = fmt.Sprintf("read body failed: %v", err)
		return res
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, trimBody(data))
		return res
	}

	res.Status = StatusOK
	res.Data = rawData(data)
	return res
}

// placeholders derives the substitution values for one match. Marker
// evidence ("*", category override) is not a keyword.
func placeholders(m provider.Match, title string) map[string]string {
	keyword := ""
	for _, kw := range m.MatchedKeywords {
		if kw != provider.MatchAllMarker && kw != provider.CategoryOverrideMarker {
			keyword = kw
			break
		}
	}

	query := title
	if keyword != "" {
		query = keyword
	}

	return map[string]string{
		"{query}":   query,
		"{title}":   title,
		"{keyword}": keyword,
	}
}

func expand(s string, vars map[string]string, escape func(string) string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		if escape != nil {
			v = escape(v)
		}
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func rawData(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorBodyChars {
		return s
	}
	cut := maxErrorBodyChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
