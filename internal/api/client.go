package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	appLog "plansheet/internal/log"
	"plansheet/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	// maxBody caps a single response body.
	maxBody = 16 << 20
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %s: %s", e.URL, e.Status, e.Body)
}

// Client talks to the content API. It is safe to reuse across a run but
// the pipeline only ever calls it sequentially.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// NewClient builds a Client on baseURL. httpClient normally comes from
// Authenticate so that every request carries the bearer token; nil uses a
// plain client with the default timeout.
func NewClient(baseURL string, httpClient *http.Client, userAgent string) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: u, http: httpClient, userAgent: userAgent}, nil
}

// SearchQuery scopes a service search.
type SearchQuery struct {
	Start    time.Time
	End      time.Time
	Statuses []string
}

// SearchServices lists services starting inside the window, ascending by
// start.
func (c *Client) SearchServices(ctx context.Context, q SearchQuery) ([]model.ServiceSummary, error) {
	params := url.Values{}
	params.Set("start", q.Start.UTC().Format(time.RFC3339))
	params.Set("end", q.End.UTC().Format(time.RFC3339))
	if len(q.Statuses) > 0 {
		params.Set("status", strings.Join(q.Statuses, ","))
	}
	params.Set("sort", "start")

	var env struct {
		Data []serviceWire `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint(params, "services"), &env); err != nil {
		return nil, err
	}

	out := make([]model.ServiceSummary, 0, len(env.Data))
	for i, w := range env.Data {
		s, err := w.summary()
		if err != nil {
			return nil, fmt.Errorf("service search result %d: %w", i, err)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	appLog.Info("service search completed",
		"start", q.Start.Format(time.RFC3339),
		"end", q.End.Format(time.RFC3339),
		"statuses", q.Statuses,
		"count", len(out),
	)
	return out, nil
}

// ServiceDetail fetches one service with its nested plan summaries.
func (c *Client) ServiceDetail(ctx context.Context, id string) (model.ServiceDetail, error) {
	if id == "" {
		return model.ServiceDetail{}, errors.New("api: service id is empty")
	}
	var env struct {
		Data *serviceWire `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint(nil, "services", id), &env); err != nil {
		return model.ServiceDetail{}, err
	}
	if env.Data == nil {
		return model.ServiceDetail{}, fmt.Errorf("%w: service %s: empty response", model.ErrMalformedPlanData, id)
	}
	return env.Data.detail()
}

// Plan fetches the full plan used for rendering.
func (c *Client) Plan(ctx context.Context, id string) (model.PlanDetail, error) {
	if id == "" {
		return model.PlanDetail{}, errors.New("api: plan id is empty")
	}
	var env struct {
		Data *planWire `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint(nil, "plans", id), &env); err != nil {
		return model.PlanDetail{}, err
	}
	if env.Data == nil {
		return model.PlanDetail{}, fmt.Errorf("%w: plan %s: empty response", model.ErrMalformedPlanData, id)
	}
	return env.Data.plan()
}

func (c *Client) endpoint(q url.Values, elems ...string) string {
	u := *c.base
	parts := make([]string, 0, len(elems)+1)
	parts = append(parts, u.Path)
	parts = append(parts, elems...)
	u.Path = "/" + strings.TrimPrefix(path.Join(parts...), "/")
	u.RawPath = ""
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	appLog.Debug("api request", "url", redactURL(rawURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", redactURL(rawURL), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			URL:    redactURL(rawURL),
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   snippet(body),
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: GET %s: %v", model.ErrMalformedPlanData, redactURL(rawURL), err)
	}
	return nil
}

// redactURL drops credentials and the query string for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "...(redacted)"
	}
	return u.String()
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
