package sandbox

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yiancode/zsxq-sdk/internal/telemetry"
	"github.com/yiancode/zsxq-sdk/sdk"
)

// SetupMiddleware configures the middleware shared by every route
func SetupMiddleware(app *fiber.App, logger logrus.FieldLogger, metrics *telemetry.Metrics) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Echo the caller's x-request-id; generate one for unsigned admin calls.
	app.Use(requestid.New(requestid.Config{
		Header: sdk.HeaderRequestID,
	}))

	app.Use(telemetry.FiberLoggingMiddleware(logger))
	app.Use(telemetry.FiberMetricsMiddleware(metrics))
}

// Rejection reasons, also used as metric labels.
const (
	reasonUnknownToken     = "unknown_token"
	reasonMissingSignature = "missing_signature"
	reasonMissingHeader    = "missing_header"
	reasonBadRequestID     = "bad_request_id"
	reasonClockSkew        = "clock_skew"
	reasonBadSignature     = "bad_signature"
)

// SignatureVerifier rejects requests whose signed headers do not check
// out, answering with the failure envelope the real API would send.
type SignatureVerifier struct {
	secret  string
	tokens  map[string]struct{}
	maxSkew time.Duration
	journal *Journal
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewSignatureVerifier builds a verifier from cfg. Received requests are
// recorded on journal, which may be nil.
func NewSignatureVerifier(cfg *Config, journal *Journal, metrics *telemetry.Metrics) *SignatureVerifier {
	tokens := make(map[string]struct{}, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens[t] = struct{}{}
	}
	return &SignatureVerifier{
		secret:  cfg.SigningSecret,
		tokens:  tokens,
		maxSkew: cfg.MaxClockSkew,
		journal: journal,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle is the Fiber middleware function
func (v *SignatureVerifier) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		received := ReceivedRequest{
			Method:     c.Method(),
			Path:       c.Path(),
			Query:      string(c.Request().URI().QueryString()),
			RequestID:  c.Get(sdk.HeaderRequestID),
			DeviceID:   c.Get(sdk.HeaderDeviceID),
			Timestamp:  c.Get(sdk.HeaderTimestamp),
			Signature:  c.Get(sdk.HeaderSignature),
			Body:       string(c.Body()),
			ReceivedAt: v.now(),
		}

		reason, code, message := v.check(c.Get(sdk.HeaderAuthorization), &received, c.Body())
		if reason != "" {
			received.Rejection = reason
			v.record(received)
			v.metrics.RecordSignatureFailure(reason)
			return c.Status(fiber.StatusUnauthorized).JSON(Failure(code, message))
		}

		v.record(received)
		c.Locals("device_id", received.DeviceID)
		return c.Next()
	}
}

func (v *SignatureVerifier) record(r ReceivedRequest) {
	if v.journal != nil {
		v.journal.record(r)
	}
}

// check returns an empty reason when the request is acceptable.
func (v *SignatureVerifier) check(token string, r *ReceivedRequest, body []byte) (reason string, code int, message string) {
	if token == "" {
		return reasonUnknownToken, sdk.CodeTokenInvalid, "missing authorization"
	}
	if len(v.tokens) > 0 {
		if _, ok := v.tokens[token]; !ok {
			return reasonUnknownToken, sdk.CodeTokenInvalid, "token invalid"
		}
	}

	if r.Timestamp == "" || r.Signature == "" {
		return reasonMissingSignature, sdk.CodeSignatureInvalid, "missing signature headers"
	}
	if r.RequestID == "" || r.DeviceID == "" {
		return reasonMissingHeader, sdk.CodeMissingParameter, "missing x-request-id or x-aduid"
	}
	if _, err := uuid.Parse(r.RequestID); err != nil {
		return reasonBadRequestID, sdk.CodeInvalidParameter, "x-request-id is not a uuid"
	}

	ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return reasonBadSignature, sdk.CodeSignatureInvalid, "x-timestamp is not a unix time"
	}
	if v.maxSkew > 0 {
		skew := v.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return reasonClockSkew, sdk.CodeSignatureInvalid, "timestamp outside allowed window"
		}
	}

	if !sdk.Verify(v.secret, r.Timestamp, r.Method, r.Path, body, r.Signature) {
		return reasonBadSignature, sdk.CodeSignatureInvalid, "signature invalid"
	}
	return "", 0, ""
}
