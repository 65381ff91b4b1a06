package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// API is the surface the per-resource wrappers (groups, topics, users,
// checkins...) are built on. Every method signs the request, retries
// transport failures and returns the unwrapped resp_data of the envelope,
// or a typed *Error.
//
// All methods are safe for concurrent use.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().WithToken(token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	data, err := client.Get(ctx, "/v2/groups", nil)
//	if errors.Is(err, sdk.ErrAuth) {
//	    // token rejected, re-authenticate
//	}
//	groups := data["groups"]
type API interface {
	// Get issues a signed GET. query is appended to the URL and is not
	// covered by the signature.
	//
	// Example:
	//
	//	data, err := client.Get(ctx, "/v2/groups/123/topics", url.Values{"count": {"20"}})
	Get(ctx context.Context, path string, query url.Values) (map[string]any, error)

	// Post issues a signed POST with body encoded as JSON.
	//
	// Example:
	//
	//	data, err := client.Post(ctx, "/v2/groups/123/topics", map[string]any{
	//	    "req_data": map[string]any{"type": "topic", "text": "hello"},
	//	})
	Post(ctx context.Context, path string, body any) (map[string]any, error)

	// Put issues a signed PUT with body encoded as JSON.
	Put(ctx context.Context, path string, body any) (map[string]any, error)

	// Delete issues a signed DELETE without body.
	Delete(ctx context.Context, path string) (map[string]any, error)

	// Do executes an arbitrary request and decodes resp_data into a map.
	Do(ctx context.Context, req *Request) (map[string]any, error)

	// Raw executes a request and returns resp_data undecoded. A success
	// envelope without resp_data yields {}.
	Raw(ctx context.Context, req *Request) (json.RawMessage, error)
}

// Client is the signed request executor for the zsxq API. It owns one
// shared HTTP connection pool and an immutable copy of its configuration.
type Client struct {
	config    Config
	transport *httpTransport
	retry     *retryExecutor
	tracer    trace.Tracer
	observer  Observer
	logger    logrus.FieldLogger
}

var _ API = (*Client)(nil)

// NewClient creates a client from config. The config is copied and
// validated; a missing token yields a KindConfiguration error matching
// ErrMissingToken before any connection is built.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithToken(os.Getenv("ZSXQ_TOKEN")).
//	    WithRetries(2).
//	    WithRetryDelay(500 * time.Millisecond)
//	client, err := sdk.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, newConfigError("config must not be nil", ErrMissingToken)
	}

	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Client{
		config:    cfg,
		transport: newHTTPTransport(&cfg),
		retry:     newRetryExecutor(newBackoffStrategy(&cfg), cfg.Logger, cfg.Observer),
		tracer:    provider.Tracer(instrumentationName),
		observer:  cfg.Observer,
		logger:    cfg.Logger,
	}, nil
}

// Config returns a copy of the validated configuration.
func (c *Client) Config() Config {
	return c.config
}

// DeviceID returns the x-aduid value used for every call of this client.
func (c *Client) DeviceID() string {
	return c.config.DeviceID
}

// Get performs a signed GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a signed POST request
func (c *Client) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a signed PUT request
func (c *Client) Put(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a signed DELETE request
func (c *Client) Delete(ctx context.Context, path string) (map[string]any, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Do executes req and decodes resp_data into a map.
func (c *Client) Do(ctx context.Context, req *Request) (map[string]any, error) {
	raw, requestID, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, newError(KindInvalidResponse, 0, "resp_data is not a JSON object", requestID, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// Raw executes req: sign, send, retry transport failures, interpret the
// envelope.
func (c *Client) Raw(ctx context.Context, req *Request) (json.RawMessage, error) {
	data, _, err := c.execute(ctx, req)
	return data, err
}

// execute is the one path every method goes through. It also returns the
// request id of the last attempt, for errors raised after interpretation.
func (c *Client) execute(ctx context.Context, req *Request) (json.RawMessage, string, error) {
	if req == nil {
		return nil, "", newConfigError("request must not be nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	call := normalizeRequest(req)

	ctx, span := startCallSpan(ctx, c.tracer, call)
	c.observer.OnRequestStart(call.Method, call.Path)
	start := time.Now()

	env, requestID, err := c.retry.execute(ctx, call, c.transport.attempt)
	var data json.RawMessage
	if err == nil {
		data, err = interpret(env, requestID)
	}

	c.observer.OnRequestEnd(call.Method, call.Path, time.Since(start), err)
	endCallSpan(span, requestID, err)
	return data, requestID, err
}

// Close releases the shared connection. The client stays usable; the next
// call builds a new connection. Safe to call multiple times.
func (c *Client) Close() error {
	return c.transport.close()
}

func normalizeRequest(req *Request) *Request {
	call := *req
	call.Method = strings.ToUpper(call.Method)
	if call.Method == "" {
		call.Method = http.MethodGet
	}
	if !strings.HasPrefix(call.Path, "/") {
		call.Path = "/" + call.Path
	}
	return &call
}
