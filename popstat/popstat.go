// Package popstat implements the unhcrPopstat tool, which fetches refugee
// population statistics from the UNHCR API.
package popstat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/unhcr-mcp/middleware"
	"github.com/felixgeelhaar/unhcr-mcp/protocol"
	"github.com/felixgeelhaar/unhcr-mcp/server"
	"github.com/felixgeelhaar/unhcr-mcp/unhcr"
)

const (
	// Name is the tool name exposed to clients.
	Name = "unhcrPopstat"

	// Description is the tool description exposed to clients.
	Description = "Fetch refugee population statistics from UNHCR API"
)

// Input is the tool input. Every field is optional.
type Input struct {
	Limit *Limit     `json:"limit,omitempty" jsonschema:"minimum=1,description=The numbers of items to return"`
	COO   string     `json:"coo,omitempty" jsonschema:"description=Country of origin filter (3-letter ISO codes)"`
	COA   string     `json:"coa,omitempty" jsonschema:"description=Country of asylum filter (3-letter ISO codes)"`
	Year  unhcr.Year `json:"year,omitempty"`
}

// Limit is the page size. It decodes from any integral JSON number, so 10.0
// is accepted and 10.5 is not.
type Limit int

func (l *Limit) UnmarshalJSON(data []byte) error {
	v, err := unhcr.ParseInteger(data)
	if err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	*l = Limit(v)
	return nil
}

// ParseInput decodes and validates tool arguments. Absent or null arguments
// are an empty input. Failures are *protocol.Error with the invalid params
// code.
func ParseInput(args json.RawMessage) (Input, error) {
	var in Input

	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return in, nil
	}
	if args[0] != '{' {
		return in, protocol.NewInvalidParams("arguments must be an object")
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return in, protocol.NewInvalidParams("invalid arguments: " + err.Error())
	}
	if in.Limit != nil && *in.Limit < 1 {
		return in, protocol.NewInvalidParams("limit must be a positive integer")
	}
	return in, nil
}

// Query converts the input into an upstream query. It fails when the year
// selector holds a malformed segment.
func (in Input) Query() (unhcr.Query, error) {
	year := unhcr.NormalizeYear(in.Year)
	if err := year.Err(); err != nil {
		return unhcr.Query{}, err
	}
	var limit *int
	if in.Limit != nil {
		n := int(*in.Limit)
		limit = &n
	}
	return unhcr.Query{
		Limit: limit,
		COO:   in.COO,
		COA:   in.COA,
		Year:  year,
	}, nil
}

// Fetcher retrieves population records.
type Fetcher interface {
	Population(ctx context.Context, q unhcr.Query) (json.RawMessage, error)
}

// Tool is the unhcrPopstat tool.
type Tool struct {
	fetcher Fetcher
	logger  middleware.Logger
}

// New creates the tool. A nil logger discards output.
func New(fetcher Fetcher, logger middleware.Logger) *Tool {
	if logger == nil {
		logger = middleware.NopLogger{}
	}
	return &Tool{fetcher: fetcher, logger: logger}
}

// Call runs one query. Failures, including panics in the fetcher, are
// reported as error-flagged results and never as a Go error.
func (t *Tool) Call(ctx context.Context, in Input) (result *protocol.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = t.fail(panicError(r))
			err = nil
		}
	}()

	q, err := in.Query()
	if err != nil {
		return t.fail(err), nil
	}

	body, err := t.fetcher.Population(ctx, q)
	if err != nil {
		return t.fail(err), nil
	}
	return protocol.NewToolResult(protocol.Text(compact(body))), nil
}

func (t *Tool) fail(err error) *protocol.ToolResult {
	var apiErr *unhcr.APIError
	if errors.As(err, &apiErr) {
		t.logger.Warn("upstream request failed",
			middleware.F("tool", Name),
			middleware.F("status", apiErr.StatusCode),
			middleware.F("error", apiErr.Error()),
		)
		return protocol.NewToolError("UNHCR API error: " + apiErr.Error())
	}

	t.logger.Warn("tool call failed", middleware.F("tool", Name), middleware.F("error", err.Error()))
	return protocol.NewToolError("Error: " + err.Error())
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// compact renders an upstream body as compact JSON text. A body that is not
// JSON is rendered as a JSON string.
func compact(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		return buf.String()
	}
	s, _ := json.Marshal(string(body))
	return string(s)
}

// Register adds the tool to srv.
func Register(srv *server.Server, t *Tool) error {
	return srv.Tool(Name).
		Description(Description).
		Title("UNHCR population statistics").
		ReadOnly().
		Idempotent().
		OpenWorld().
		InputOf(Input{}).
		Handler(server.Typed(ParseInput, t.Call)).
		Err()
}
