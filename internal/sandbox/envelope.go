package sandbox

import "github.com/yiancode/zsxq-sdk/sdk"

// Envelope is the zsxq response wrapper served by the sandbox.
type Envelope struct {
	Succeeded  bool        `json:"succeeded"`
	RespData   interface{} `json:"resp_data,omitempty"`
	Code       int         `json:"code,omitempty"`
	Error      string      `json:"error,omitempty"`
	Info       string      `json:"info,omitempty"`
	RetryAfter int         `json:"retry_after,omitempty"`
}

// Failure codes the sandbox itself produces.
const (
	CodeEndpointNotFound = 30000
	CodeBadStub          = sdk.CodeInvalidParameter
)

// Success wraps data in a success envelope
func Success(data interface{}) *Envelope {
	return &Envelope{Succeeded: true, RespData: data}
}

// Failure builds a failure envelope
func Failure(code int, message string) *Envelope {
	return &Envelope{Code: code, Error: message}
}
