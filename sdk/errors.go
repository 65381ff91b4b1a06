package sdk

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the SDK. Every *Error matches the sentinel of
// its own kind and the sentinel of its family, so both of these hold for a
// token-invalid response:
//
//	errors.Is(err, sdk.ErrTokenInvalid) // specific
//	errors.Is(err, sdk.ErrAuth)         // family
var (
	// ErrConfiguration is returned when the client configuration is invalid
	ErrConfiguration = errors.New("invalid configuration")
	// ErrMissingToken is returned when no token is configured
	ErrMissingToken = errors.New("token is required")

	// ErrTimeout is returned when an attempt exceeds its deadline
	ErrTimeout = errors.New("request timeout")
	// ErrNetwork is returned for transport level failures
	ErrNetwork = errors.New("network error")
	// ErrCanceled is returned when the caller cancels the request
	ErrCanceled = errors.New("request canceled")
	// ErrInvalidResponse is returned when the response body is not a valid envelope
	ErrInvalidResponse = errors.New("invalid response from server")

	ErrAuth             = errors.New("authentication failed")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrSignatureInvalid = errors.New("signature invalid")

	ErrPermission = errors.New("permission denied")
	ErrNotMember  = errors.New("not a group member")
	ErrNotOwner   = errors.New("not the group owner")

	ErrResourceNotFound = errors.New("resource not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrTopicNotFound    = errors.New("topic not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrCheckinNotFound  = errors.New("checkin not found")

	ErrRateLimited = errors.New("rate limited")

	ErrBusiness         = errors.New("business rule rejected")
	ErrAlreadyMember    = errors.New("already a group member")
	ErrNotJoinedCheckin = errors.New("not joined checkin")
	ErrAlreadyCheckedIn = errors.New("already checked in")
	ErrCheckinClosed    = errors.New("checkin closed")

	ErrValidation       = errors.New("validation failed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrMissingParameter = errors.New("missing parameter")

	// ErrUnclassified matches failure codes outside every documented range
	ErrUnclassified = errors.New("unclassified error")
)

// Transport error codes. They are never sent by the server as envelope
// codes for transport failures, the SDK assigns them locally.
const (
	CodeNetworkError = 70001
	CodeTimeout      = 70002
	CodeServerError  = 70003
)

// Server failure codes with a dedicated kind.
const (
	CodeTokenInvalid     = 10001
	CodeTokenExpired     = 10002
	CodeSignatureInvalid = 10003
	CodeNotMember        = 20002
	CodeNotOwner         = 20003
	CodeGroupNotFound    = 30001
	CodeTopicNotFound    = 30002
	CodeUserNotFound     = 30003
	CodeCheckinNotFound  = 30004
	CodeRateLimit        = 40001
	CodeAlreadyMember    = 50001
	CodeNotJoinedCheckin = 52010
	CodeAlreadyCheckedIn = 52011
	CodeCheckinClosed    = 52012
	CodeInvalidParameter = 60001
	CodeMissingParameter = 60002
)

// ErrorKind is the closed set of error variants produced by the SDK.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    switch sdkErr.Kind.Category() {
//	    case sdk.KindAuth:
//	        // refresh the token
//	    case sdk.KindRateLimit:
//	        time.Sleep(sdkErr.RetryAfter)
//	    }
//	}
type ErrorKind int

const (
	// KindUnclassified is a failure code matching no override and no range
	KindUnclassified ErrorKind = iota
	KindConfiguration
	KindTimeout
	KindNetwork
	KindCanceled
	KindInvalidResponse

	KindAuth
	KindTokenInvalid
	KindTokenExpired
	KindSignatureInvalid

	KindPermission
	KindNotMember
	KindNotOwner

	KindResourceNotFound
	KindGroupNotFound
	KindTopicNotFound
	KindUserNotFound
	KindCheckinNotFound

	KindRateLimit

	KindBusiness
	KindAlreadyMember
	KindNotJoinedCheckin
	KindAlreadyCheckedIn
	KindCheckinClosed

	KindValidation
	KindInvalidParameter
	KindMissingParameter
)

var kindNames = map[ErrorKind]string{
	KindUnclassified:     "unclassified",
	KindConfiguration:    "configuration",
	KindTimeout:          "timeout",
	KindNetwork:          "network",
	KindCanceled:         "canceled",
	KindInvalidResponse:  "invalid_response",
	KindAuth:             "auth",
	KindTokenInvalid:     "token_invalid",
	KindTokenExpired:     "token_expired",
	KindSignatureInvalid: "signature_invalid",
	KindPermission:       "permission",
	KindNotMember:        "not_member",
	KindNotOwner:         "not_owner",
	KindResourceNotFound: "resource_not_found",
	KindGroupNotFound:    "group_not_found",
	KindTopicNotFound:    "topic_not_found",
	KindUserNotFound:     "user_not_found",
	KindCheckinNotFound:  "checkin_not_found",
	KindRateLimit:        "rate_limit",
	KindBusiness:         "business",
	KindAlreadyMember:    "already_member",
	KindNotJoinedCheckin: "not_joined_checkin",
	KindAlreadyCheckedIn: "already_checked_in",
	KindCheckinClosed:    "checkin_closed",
	KindValidation:       "validation",
	KindInvalidParameter: "invalid_parameter",
	KindMissingParameter: "missing_parameter",
}

var kindSentinels = map[ErrorKind]error{
	KindUnclassified:     ErrUnclassified,
	KindConfiguration:    ErrConfiguration,
	KindTimeout:          ErrTimeout,
	KindNetwork:          ErrNetwork,
	KindCanceled:         ErrCanceled,
	KindInvalidResponse:  ErrInvalidResponse,
	KindAuth:             ErrAuth,
	KindTokenInvalid:     ErrTokenInvalid,
	KindTokenExpired:     ErrTokenExpired,
	KindSignatureInvalid: ErrSignatureInvalid,
	KindPermission:       ErrPermission,
	KindNotMember:        ErrNotMember,
	KindNotOwner:         ErrNotOwner,
	KindResourceNotFound: ErrResourceNotFound,
	KindGroupNotFound:    ErrGroupNotFound,
	KindTopicNotFound:    ErrTopicNotFound,
	KindUserNotFound:     ErrUserNotFound,
	KindCheckinNotFound:  ErrCheckinNotFound,
	KindRateLimit:        ErrRateLimited,
	KindBusiness:         ErrBusiness,
	KindAlreadyMember:    ErrAlreadyMember,
	KindNotJoinedCheckin: ErrNotJoinedCheckin,
	KindAlreadyCheckedIn: ErrAlreadyCheckedIn,
	KindCheckinClosed:    ErrCheckinClosed,
	KindValidation:       ErrValidation,
	KindInvalidParameter: ErrInvalidParameter,
	KindMissingParameter: ErrMissingParameter,
}

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Category returns the family a kind belongs to. Family kinds return
// themselves.
func (k ErrorKind) Category() ErrorKind {
	switch k {
	case KindTokenInvalid, KindTokenExpired, KindSignatureInvalid:
		return KindAuth
	case KindNotMember, KindNotOwner:
		return KindPermission
	case KindGroupNotFound, KindTopicNotFound, KindUserNotFound, KindCheckinNotFound:
		return KindResourceNotFound
	case KindAlreadyMember, KindNotJoinedCheckin, KindAlreadyCheckedIn, KindCheckinClosed:
		return KindBusiness
	case KindInvalidParameter, KindMissingParameter:
		return KindValidation
	default:
		return k
	}
}

// codeOverrides maps exact failure codes to their kind. Checked before codeRanges.
var codeOverrides = map[int]ErrorKind{
	CodeTokenInvalid:     KindTokenInvalid,
	CodeTokenExpired:     KindTokenExpired,
	CodeSignatureInvalid: KindSignatureInvalid,
	CodeNotMember:        KindNotMember,
	CodeNotOwner:         KindNotOwner,
	CodeGroupNotFound:    KindGroupNotFound,
	CodeTopicNotFound:    KindTopicNotFound,
	CodeUserNotFound:     KindUserNotFound,
	CodeCheckinNotFound:  KindCheckinNotFound,
	CodeRateLimit:        KindRateLimit,
	CodeAlreadyMember:    KindAlreadyMember,
	CodeNotJoinedCheckin: KindNotJoinedCheckin,
	CodeAlreadyCheckedIn: KindAlreadyCheckedIn,
	CodeCheckinClosed:    KindCheckinClosed,
	CodeInvalidParameter: KindInvalidParameter,
	CodeMissingParameter: KindMissingParameter,
}

// codeRange is a half-open interval [low, high) of failure codes
type codeRange struct {
	low, high int
	kind      ErrorKind
}

var codeRanges = []codeRange{
	{10000, 20000, KindAuth},
	{20000, 30000, KindPermission},
	{30000, 40000, KindResourceNotFound},
	{40000, 50000, KindRateLimit},
	{50000, 60000, KindBusiness},
	{60000, 70000, KindValidation},
	{70000, 80000, KindNetwork},
}

// ClassifyCode resolves a failure envelope code to its kind: exact
// overrides first, then the documented ranges, then KindUnclassified.
func ClassifyCode(code int) ErrorKind {
	if kind, ok := codeOverrides[code]; ok {
		return kind
	}
	for _, r := range codeRanges {
		if code >= r.low && code < r.high {
			return r.kind
		}
	}
	return KindUnclassified
}

// Error is the single error type produced by the SDK. It carries the
// machine-checkable code and the id of the attempt that produced it so
// failures can be correlated with server-side logs.
//
// Example:
//
//	data, err := client.Get(ctx, "/v2/groups", nil)
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    log.Printf("kind=%s code=%d request_id=%s", sdkErr.Kind, sdkErr.Code, sdkErr.RequestID)
//	}
type Error struct {
	// Kind is the error variant
	Kind ErrorKind `json:"kind"`
	// Code is the envelope failure code, or one of the Code* transport constants
	Code int `json:"code"`
	// Message is the resolved human-readable message
	Message string `json:"message"`
	// RequestID is the x-request-id of the attempt that produced the error
	RequestID string `json:"request_id,omitempty"`
	// RetryAfter is the server's retry hint for rate limit errors, zero when absent
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// StatusCode is the HTTP status of the response, zero for pure transport failures
	StatusCode int `json:"status_code,omitempty"`
	// Timestamp is when the error occurred
	Timestamp time.Time `json:"timestamp"`

	transport bool
	wrapped   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error [%d]: %s", e.Kind, e.Code, e.Message)
	if e.RequestID != "" {
		msg += fmt.Sprintf(" (request_id: %s)", e.RequestID)
	}
	if e.wrapped != nil {
		msg += ": " + e.wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is implements errors.Is for sentinel matching by kind and by family
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if sentinel, ok := kindSentinels[e.Kind]; ok && sentinel == target {
		return true
	}
	if category := e.Kind.Category(); category != e.Kind {
		return kindSentinels[category] == target
	}
	return false
}

// IsTransport reports whether the error was raised below the envelope
// layer (timeout, connection failure, 5xx without envelope).
func (e *Error) IsTransport() bool {
	return e.transport
}

// IsRetryable reports whether the retry loop may attempt the request again
func (e *Error) IsRetryable() bool {
	return e.transport && (e.Kind == KindTimeout || e.Kind == KindNetwork)
}

func newError(kind ErrorKind, code int, message, requestID string, wrapped error) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now(),
		wrapped:   wrapped,
	}
}

func newTransportError(kind ErrorKind, code int, message, requestID string, wrapped error) *Error {
	err := newError(kind, code, message, requestID, wrapped)
	err.transport = true
	return err
}

func newConfigError(message string, wrapped error) *Error {
	return newError(KindConfiguration, 0, message, "", wrapped)
}

// NewAPIError builds the typed error for a failure envelope code.
func NewAPIError(code int, message, requestID string) *Error {
	return newError(ClassifyCode(code), code, message, requestID, nil)
}

// IsRetryable checks if an error is eligible for another attempt.
// Only transport timeouts and network failures are retryable; envelope
// failures never are, since the server's answer will not change.
func IsRetryable(err error) bool {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.IsRetryable()
	}
	return false
}

// IsTransport checks if an error originated below the envelope layer
func IsTransport(err error) bool {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.IsTransport()
	}
	return false
}

// KindOf returns the kind of an SDK error, or KindUnclassified for foreign errors
func KindOf(err error) ErrorKind {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.Kind
	}
	return KindUnclassified
}

// CodeOf returns the code of an SDK error, or 0
func CodeOf(err error) int {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.Code
	}
	return 0
}

// RequestIDOf returns the request id an SDK error was produced by, or ""
func RequestIDOf(err error) string {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.RequestID
	}
	return ""
}
