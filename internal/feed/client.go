package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Upstream endpoints. The notification URL keeps the doubled slash the
// backend actually serves; normalizing it changes the route.
const (
	DefaultStatusURL       = "https://www.simcoecountyschoolbus.ca/status.json"
	DefaultNotificationURL = "https://scstc.ca//Alerts.aspx/GetBusNotifications"
)

// DefaultTimeout is the fixed per-request timeout for both feeds.
const DefaultTimeout = 10 * time.Second

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when several
// route coordinators share one client
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// FetchError is the one failure class that propagates out of a refresh:
// a transport error, a non-2xx response, or a malformed JSON body.
// Envelope and field oddities never produce a FetchError; they degrade to
// empty rows or absent fields instead.
type FetchError struct {
	Feed       string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s feed: %s returned %d: %v", e.Feed, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s feed: %s: %v", e.Feed, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// notificationPayload is the JSON-RPC style body the notification endpoint
// expects. The pagination and sort values are fixed; only search.value
// varies with the tracked routes.
type notificationPayload struct {
	AlertCondition alertCondition `json:"alertCondition"`
	DataTableData  dataTableData  `json:"dataTableData"`
}

type alertCondition struct {
	RangeType string `json:"RangeType"`
}

type dataTableData struct {
	Draw          int         `json:"draw"`
	Length        int         `json:"length"`
	Start         int         `json:"start"`
	Order         []sortOrder `json:"order"`
	Search        searchSpec  `json:"search"`
	SortFieldName string      `json:"SortFieldName"`
}

type sortOrder struct {
	Column int    `json:"column"`
	Dir    string `json:"dir"`
}

type searchSpec struct {
	Value string `json:"value"`
	Regex bool   `json:"regex"`
}

func newNotificationPayload(routes []string) notificationPayload {
	return notificationPayload{
		AlertCondition: alertCondition{RangeType: ""},
		DataTableData: dataTableData{
			Draw:          1,
			Length:        100,
			Start:         0,
			Order:         []sortOrder{{Column: 2, Dir: "asc"}},
			Search:        searchSpec{Value: strings.Join(routes, ","), Regex: false},
			SortFieldName: "RouteRun",
		},
	}
}

// Client fetches the two upstream feeds. One Client is shared by all
// coordinators; it is safe for concurrent use.
//
// Timeouts are applied per request via context rather than on the
// http.Client, and response bodies are capped at 1MB.
type Client struct {
	httpClient      *http.Client
	statusURL       string
	notificationURL string
	timeout         time.Duration
	metrics         *Metrics
}

// NewClient creates a feed [Client]. Empty URLs fall back to the upstream
// defaults; a zero timeout falls back to [DefaultTimeout]. metrics may be
// nil to disable telemetry.
func NewClient(statusURL, notificationURL string, timeout time.Duration, metrics *Metrics) *Client {
	if statusURL == "" {
		statusURL = DefaultStatusURL
	}
	if notificationURL == "" {
		notificationURL = DefaultNotificationURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
		statusURL:       statusURL,
		notificationURL: notificationURL,
		timeout:         timeout,
		metrics:         metrics,
	}
}

// FetchStatus issues one GET against the status feed and decodes the
// key → entry mapping. Any transport error, non-2xx status, or malformed
// JSON is returned as a *FetchError.
func (c *Client) FetchStatus(ctx context.Context) (StatusRecord, error) {
	body, err := c.do(ctx, "status", http.MethodGet, c.statusURL, nil)
	if err != nil {
		return nil, err
	}

	var record StatusRecord
	if err := json.Unmarshal(body, &record); err != nil {
		c.metrics.observe("status", 0, 0, true)
		return nil, &FetchError{Feed: "status", URL: c.statusURL, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	return record, nil
}

// FetchNotifications issues one POST against the notification feed with
// the fixed pagination/sort body and search.value set to the comma-joined
// routes. An empty route set skips the network call entirely and returns
// an empty payload; that is a deliberate short-circuit, not a failure.
//
// The response is returned raw; envelope handling belongs to
// [ExtractRows].
func (c *Client) FetchNotifications(ctx context.Context, routes []string) (json.RawMessage, error) {
	if len(routes) == 0 {
		return json.RawMessage("{}"), nil
	}

	payload, err := json.Marshal(newNotificationPayload(routes))
	if err != nil {
		return nil, &FetchError{Feed: "notifications", URL: c.notificationURL, Err: err}
	}

	body, err := c.do(ctx, "notifications", http.MethodPost, c.notificationURL, payload)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		c.metrics.observe("notifications", 0, 0, true)
		return nil, &FetchError{Feed: "notifications", URL: c.notificationURL, Err: fmt.Errorf("malformed JSON body")}
	}
	return json.RawMessage(body), nil
}

// do performs one HTTP request with the fixed timeout and returns the
// limited body. Errors are already wrapped as *FetchError.
func (c *Client) do(ctx context.Context, feedName, method, url string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	fail := func(statusCode int, err error) ([]byte, error) {
		c.metrics.observe(feedName, time.Since(start).Seconds(), 0, true)
		return nil, &FetchError{Feed: feedName, URL: url, StatusCode: statusCode, Err: err}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	c.metrics.observe(feedName, time.Since(start).Seconds(), len(body), false)
	return body, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
