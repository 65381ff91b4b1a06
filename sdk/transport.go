package sdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Request describes one logical API call. The signature covers Path only,
// Query is appended to the URL unsigned.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is []byte, json.RawMessage or string,
	// which are sent verbatim.
	Body any
}

// httpTransport performs single attempts against the zsxq API over the
// connection owned by its connectionManager.
type httpTransport struct {
	baseURL string
	headers *headerBuilder
	conn    *connectionManager
}

func newHTTPTransport(config *Config) *httpTransport {
	return &httpTransport{
		baseURL: config.BaseURL,
		headers: newHeaderBuilder(config),
		conn:    newConnectionManager(config),
	}
}

// attempt performs exactly one HTTP exchange. It returns the decoded
// envelope and the request id of this attempt. Every *Error it returns
// carries that request id.
func (t *httpTransport) attempt(ctx context.Context, req *Request) (*envelope, string, error) {
	signed, err := t.headers.build(req.Method, req.Path, req.Body)
	if err != nil {
		return nil, "", err
	}
	requestID := signed.RequestID

	var bodyReader io.Reader
	if len(signed.Payload) > 0 {
		bodyReader = bytes.NewReader(signed.Payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), t.url(req), bodyReader)
	if err != nil {
		return nil, requestID, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = signed.Header
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := t.conn.acquire().Do(httpReq)
	if err != nil {
		return nil, requestID, classifyTransportError(ctx, req, requestID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestID, classifyTransportError(ctx, req, requestID, err)
	}

	env, decodeErr := decodeEnvelope(body)
	if resp.StatusCode >= http.StatusInternalServerError {
		// A 5xx only counts as an API answer when it carries a failure code.
		if decodeErr != nil || env.Succeeded || env.Code == 0 {
			serverErr := newTransportError(KindNetwork, CodeServerError,
				fmt.Sprintf("server error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
				requestID, decodeErr)
			serverErr.StatusCode = resp.StatusCode
			return nil, requestID, serverErr
		}
	}
	if decodeErr != nil {
		invalid := newError(KindInvalidResponse, 0,
			fmt.Sprintf("cannot decode response envelope (status %d)", resp.StatusCode),
			requestID, decodeErr)
		invalid.StatusCode = resp.StatusCode
		return nil, requestID, invalid
	}

	env.statusCode = resp.StatusCode
	env.retryAfterHeader = parseRetryAfter(resp.Header.Get("Retry-After"))
	return env, requestID, nil
}

func (t *httpTransport) url(req *Request) string {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := t.baseURL + path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func (t *httpTransport) close() error {
	return t.conn.close()
}

// classifyTransportError maps a failure below the envelope layer to its
// kind. Explicit cancellation is not a transport error and is never retried.
func classifyTransportError(ctx context.Context, req *Request, requestID string, err error) *Error {
	op := strings.ToUpper(req.Method) + " " + req.Path
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return newError(KindCanceled, 0, op+": request canceled", requestID, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newTransportError(KindTimeout, CodeTimeout, op+": request timed out", requestID, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTransportError(KindTimeout, CodeTimeout, op+": request timed out", requestID, err)
	}
	return newTransportError(KindNetwork, CodeNetworkError, op+": network error", requestID, err)
}

// BuildPath builds a URL path with proper escaping for path parameters.
// It replaces placeholders like {0}, {1}, etc. with the provided arguments.
//
// Example:
//
//	path := sdk.BuildPath("/v2/groups/{0}/topics", groupID)
//
// The function uses QueryEscape for encoding, then replaces '+' with '%20'
// since '+' means space only in query strings.
func BuildPath(pattern string, args ...string) string {
	path := pattern
	for i, arg := range args {
		placeholder := fmt.Sprintf("{%d}", i)
		escaped := url.QueryEscape(arg)
		escaped = strings.ReplaceAll(escaped, "+", "%20")
		path = strings.Replace(path, placeholder, escaped, 1)
	}
	return path
}
