package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Header names of the signed wire contract.
const (
	HeaderAuthorization = "authorization"
	HeaderTimestamp     = "x-timestamp"
	HeaderSignature     = "x-signature"
	HeaderRequestID     = "x-request-id"
	HeaderDeviceID      = "x-aduid"
	HeaderVersion       = "x-version"
	HeaderUserAgent     = "user-agent"
	HeaderContentType   = "content-type"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	sdkVersion      = "1.0.0"
)

// signedRequest is the output of one headerBuilder.build call. Payload is
// exactly the byte slice the signature covers.
type signedRequest struct {
	Header    http.Header
	RequestID string
	Payload   []byte
}

type headerBuilder struct {
	token      string
	deviceID   string
	appVersion string
	signer     *signer
	newID      func() string
}

func newHeaderBuilder(cfg *Config) *headerBuilder {
	return &headerBuilder{
		token:      cfg.Token,
		deviceID:   cfg.DeviceID,
		appVersion: cfg.AppVersion,
		signer:     newSigner(cfg.SigningSecret),
		newID:      uuid.NewString,
	}
}

// build serializes body and produces the headers for one attempt. It must be
// called again for every retry so the timestamp and request id are fresh.
func (b *headerBuilder) build(method, path string, body any) (*signedRequest, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	timestamp, signature := b.signer.sign(method, path, payload)
	requestID := b.newID()

	h := make(http.Header, 8)
	h.Set(HeaderAuthorization, b.token)
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderSignature, signature)
	h.Set(HeaderRequestID, requestID)
	h.Set(HeaderDeviceID, b.deviceID)
	h.Set(HeaderVersion, b.appVersion)
	h.Set(HeaderUserAgent, fmt.Sprintf("xiaomiquan/%s SDK/%s", b.appVersion, sdkVersion))
	h.Set(HeaderContentType, contentTypeJSON)

	return &signedRequest{Header: h, RequestID: requestID, Payload: payload}, nil
}

// encodeBody returns nil for a nil body. Raw bytes are sent verbatim.
func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}
