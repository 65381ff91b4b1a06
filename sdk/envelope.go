package sdk

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const unknownErrorMessage = "unknown error"

var emptyObject = json.RawMessage(`{}`)

// envelope is the wire wrapper around every zsxq response.
type envelope struct {
	Succeeded  bool            `json:"succeeded"`
	RespData   json.RawMessage `json:"resp_data,omitempty"`
	Code       int             `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`
	Info       string          `json:"info,omitempty"`
	RetryAfter float64         `json:"retry_after,omitempty"`

	// filled from the HTTP response, not the body
	statusCode       int
	retryAfterHeader time.Duration
}

var errNotEnvelope = errors.New("response body is not a JSON object")

func decodeEnvelope(body []byte) (*envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotEnvelope
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// message resolves the human-readable failure text: error, then info.
func (e *envelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Info != "" {
		return e.Info
	}
	return unknownErrorMessage
}

func (e *envelope) retryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter * float64(time.Second))
	}
	return e.retryAfterHeader
}

// interpret unwraps a successful envelope or converts a failed one into
// exactly one *Error tagged with requestID. A success without resp_data
// yields an empty object.
func interpret(env *envelope, requestID string) (json.RawMessage, error) {
	if env.Succeeded {
		data := bytes.TrimSpace(env.RespData)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return emptyObject, nil
		}
		return json.RawMessage(data), nil
	}

	apiErr := NewAPIError(env.Code, env.message(), requestID)
	apiErr.StatusCode = env.statusCode
	if apiErr.Kind.Category() == KindRateLimit {
		apiErr.RetryAfter = env.retryAfter()
	}
	return nil, apiErr
}

// parseRetryAfter accepts delta seconds or an HTTP date. Unparseable or
// past values yield zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
