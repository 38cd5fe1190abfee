package unhcr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the population endpoint of the UNHCR API.
const DefaultBaseURL = "https://api.unhcr.org/population/v1/population/"

const (
	instrumentationName = "github.com/felixgeelhaar/unhcr-mcp/unhcr"
	maxResponseBytes    = 32 << 20
)

// Query selects population records. Zero-valued fields are left out of the
// request.
type Query struct {
	Limit *int
	COO   string
	COA   string
	Year  YearParam
}

// Values returns the URL parameters for q. Country fields are always
// requested as ISO3 codes.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Limit != nil {
		v.Set("limit", strconv.Itoa(*q.Limit))
	}
	if q.COO != "" {
		v.Set("coo", q.COO)
	}
	if q.COA != "" {
		v.Set("coa", q.COA)
	}
	v.Set("cf_type", "ISO")
	if year := q.Year.Value(); year != "" {
		v.Set("year", year)
	}
	return v
}

// encode renders the parameters with commas left literal; the API splits
// multi-valued parameters on them.
func (q Query) encode() string {
	return strings.ReplaceAll(q.Values().Encode(), "%2C", ",")
}

// APIError is a failed call to the API. StatusCode is zero when no response
// was received, in which case Err holds the transport error.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client queries the population endpoint. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	userAgent  string
}

// NewClient creates a client for the endpoint at baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		tracer:     otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint the client queries.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Population performs one GET for q and returns the response body. Failures
// are returned as *APIError.
func (c *Client) Population(ctx context.Context, q Query) (json.RawMessage, error) {
	u := *c.baseURL
	u.RawQuery = q.encode()

	ctx, span := c.tracer.Start(ctx, "unhcr.population",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", u.String()),
		),
	)
	defer span.End()

	body, status, err := c.get(ctx, u.String())
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, target string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, &APIError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &APIError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.StatusCode),
		}
	}
	return body, resp.StatusCode, nil
}

// errorMessage prefers the message field of an error body.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}
