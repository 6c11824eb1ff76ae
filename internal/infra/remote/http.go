package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/metrics"
)

const (
	DefaultTablePath = "/api/now/table"
	DefaultIDField   = "sys_id"
	DefaultTimeout   = 30 * time.Second

	oauthTokenPath = "/oauth_token.do"
)

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithTablePath overrides the path prefix of record endpoints.
func WithTablePath(path string) Option {
	return func(h *HTTPClient) { h.tablePath = "/" + strings.Trim(path, "/") }
}

// WithIDField overrides the field holding a record's generated identifier.
func WithIDField(field string) Option {
	return func(h *HTTPClient) { h.idField = field }
}

// HTTPClient implements Client for a REST Table API over HTTP.
type HTTPClient struct {
	alias      string
	baseURL    string
	tablePath  string
	idField    string
	httpClient *http.Client
	authorize  func(req *http.Request)

	Monitor *Monitor
}

// NewHTTPClient authenticates against the instance described by cred.
// OAuth credentials trigger a token exchange before the client is returned.
func NewHTTPClient(ctx context.Context, cred *domain.Credential, opts ...Option) (*HTTPClient, error) {
	if cred == nil {
		return nil, fmt.Errorf("nil credential")
	}
	base, err := url.Parse(cred.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("instance %q: invalid url %q", cred.Alias, cred.URL)
	}

	timeout := cred.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &HTTPClient{
		alias:     cred.Alias,
		baseURL:   strings.TrimRight(base.String(), "/"),
		tablePath: DefaultTablePath,
		idField:   DefaultIDField,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch cred.Method() {
	case domain.AuthBasic:
		username, password := cred.Username, cred.Password
		c.authorize = func(req *http.Request) { req.SetBasicAuth(username, password) }
	case domain.AuthToken:
		c.authorize = bearer(cred.Token)
	case domain.AuthOAuth:
		token, err := c.exchangeToken(ctx, cred)
		if err != nil {
			return nil, err
		}
		c.authorize = bearer(token)
	default:
		return nil, fmt.Errorf("instance %q: unsupported auth method %q", cred.Alias, cred.Auth)
	}

	return c, nil
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

// Alias returns the instance alias.
func (c *HTTPClient) Alias() string {
	return c.alias
}

// Create inserts a record and returns its generated identifier.
func (c *HTTPClient) Create(ctx context.Context, target string, payload map[string]any) (string, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.recordPath(target, ""), nil, payload, &rec); err != nil {
		return "", err
	}

	id, _ := rec[c.idField].(string)
	if id == "" {
		return "", fmt.Errorf("create %s: response has no %s", target, c.idField)
	}
	return id, nil
}

// Update patches an existing record.
func (c *HTTPClient) Update(ctx context.Context, target, id string, payload map[string]any) error {
	if id == "" {
		return fmt.Errorf("update %s: empty record id", target)
	}
	return c.do(ctx, http.MethodPatch, c.recordPath(target, id), nil, payload, nil)
}

// Get fetches one record.
func (c *HTTPClient) Get(ctx context.Context, target, id string) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.recordPath(target, id), nil, nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Query lists records matching an encoded query.
func (c *HTTPClient) Query(ctx context.Context, target, query string, limit int) ([]Record, error) {
	params := url.Values{}
	if query != "" {
		params.Set("sysparm_query", query)
	}
	if limit > 0 {
		params.Set("sysparm_limit", strconv.Itoa(limit))
	}

	var recs []Record
	if err := c.do(ctx, http.MethodGet, c.recordPath(target, ""), params, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Close cleans up resources.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) recordPath(target, id string) string {
	p := c.tablePath + "/" + url.PathEscape(target)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// envelope is the response shape of every record endpoint.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

func (c *HTTPClient) do(
	ctx context.Context,
	method, path string,
	params url.Values,
	body any,
	out any,
) error {
	if wait := c.Monitor.RetryAfter(); wait > 0 {
		return &StatusError{
			StatusCode: http.StatusTooManyRequests,
			Method:     method,
			Path:       path,
			Message:    fmt.Sprintf("instance throttled, retry after %v", wait.Round(time.Second)),
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	metrics.RemoteLatency.WithLabelValues(c.alias, method).Observe(latency.Seconds())
	if err != nil {
		c.Monitor.RecordRequest(latency, true)
		metrics.RemoteRequests.WithLabelValues(c.alias, method, "none").Inc()
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	metrics.RemoteRequests.WithLabelValues(c.alias, method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Monitor.RecordRequest(latency, true)
		return &TransportError{Method: method, Path: path, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.Monitor.RecordThrottle(resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Monitor.RecordRequest(latency, true)
		return statusError(resp.StatusCode, method, path, data)
	}
	c.Monitor.RecordRequest(latency, false)

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("parse response: missing result")
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("parse result: %w", err)
	}
	return nil
}

func statusError(code int, method, path string, body []byte) *StatusError {
	se := &StatusError{StatusCode: code, Method: method, Path: path}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		se.Message = env.Error.Message
		se.Detail = env.Error.Detail
		return se
	}

	se.Message = strings.TrimSpace(string(body))
	if len(se.Message) > 512 {
		se.Message = se.Message[:512]
	}
	return se
}

// exchangeToken performs the OAuth password grant for cred.
func (c *HTTPClient) exchangeToken(ctx context.Context, cred *domain.Credential) (string, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"username":      {cred.Username},
		"password":      {cred.Password},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+oauthTokenPath,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Method: http.MethodPost, Path: oauthTokenPath, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Method: http.MethodPost, Path: oauthTokenPath, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, http.MethodPost, oauthTokenPath, data)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("instance %q: token response has no access_token", cred.Alias)
	}
	return tok.AccessToken, nil
}
