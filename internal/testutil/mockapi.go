// Package testutil holds the mock zsxq API server used by the SDK tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MockServer is an httptest server that answers with zsxq envelopes and
// records every request it receives.
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	requestCount atomic.Int32
	requests     []RecordedRequest
}

// HandlerFunc returns the status code and the JSON body to send. A nil body
// sends nothing. A []byte body is written verbatim.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (int, interface{})

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// Success builds a succeeded envelope around data.
func Success(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"succeeded": true,
		"resp_data": data,
	}
}

// Failure builds a failed envelope with the given code and error message.
func Failure(code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"succeeded": false,
		"code":      code,
		"error":     message,
	}
}

// NewMockServer creates a new mock server with no handlers registered.
// Unknown routes answer 404 without an envelope.
func NewMockServer() *MockServer {
	ms := &MockServer{
		handlers: make(map[string]HandlerFunc),
		requests: make([]RecordedRequest, 0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ms.handleRequest)

	ms.Server = httptest.NewServer(mux)
	return ms
}

// RegisterHandler registers a handler for "METHOD /path". A pattern ending
// in "/" matches every path with that prefix.
func (ms *MockServer) RegisterHandler(pattern string, handler HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[pattern] = handler
}

// Respond registers a handler that always returns status and body.
func (ms *MockServer) Respond(pattern string, status int, body interface{}) {
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return status, body
	})
}

func (ms *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, 0)
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	ms.mu.Lock()
	ms.requests = append(ms.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
		Body:    body,
		Time:    time.Now(),
	})
	ms.mu.Unlock()

	ms.requestCount.Add(1)

	pattern := r.Method + " " + r.URL.Path
	ms.mu.RLock()
	handler, exact := ms.handlers[pattern]
	if !exact {
		for p, h := range ms.handlers {
			if strings.HasSuffix(p, "/") && strings.HasPrefix(pattern, p) {
				handler = h
				break
			}
		}
	}
	ms.mu.RUnlock()

	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	status, response := handler(w, r)
	if status == 0 {
		// handler took over the connection
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	switch v := response.(type) {
	case nil:
	case []byte:
		w.Write(v)
	default:
		json.NewEncoder(w).Encode(v)
	}
}

// GetRequestCount returns the total number of requests received
func (ms *MockServer) GetRequestCount() int {
	return int(ms.requestCount.Load())
}

// GetRequests returns all recorded requests
func (ms *MockServer) GetRequests() []RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]RecordedRequest, len(ms.requests))
	copy(result, ms.requests)
	return result
}

// LastRequest returns the most recent request, or the zero value.
func (ms *MockServer) LastRequest() RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if len(ms.requests) == 0 {
		return RecordedRequest{}
	}
	return ms.requests[len(ms.requests)-1]
}

// Reset clears all recorded requests
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requestCount.Store(0)
	ms.requests = ms.requests[:0]
}

// WithDelayedResponse sets up a handler that delays before responding
func (ms *MockServer) WithDelayedResponse(pattern string, delay time.Duration, handler HandlerFunc) {
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
		return handler(w, r)
	})
}

// WithRetryResponse fails the first failCount requests with failStatus and
// no envelope, then succeeds with data.
func (ms *MockServer) WithRetryResponse(pattern string, failCount int, failStatus int, data interface{}) {
	attempts := atomic.Int32{}
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		current := int(attempts.Add(1))
		if current <= failCount {
			return failStatus, []byte("temporary failure")
		}
		return http.StatusOK, Success(data)
	})
}

// WithDroppedConnections closes the connection without a response for the
// first dropCount requests, then delegates to handler.
func (ms *MockServer) WithDroppedConnections(pattern string, dropCount int, handler HandlerFunc) {
	attempts := atomic.Int32{}
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		if int(attempts.Add(1)) <= dropCount {
			DropConnection(w)
			return 0, nil
		}
		return handler(w, r)
	})
}

// DropConnection hijacks and closes the underlying connection.
func DropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	if ms.Server != nil {
		ms.Server.Close()
	}
}
