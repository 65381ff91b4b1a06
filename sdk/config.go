package sdk

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the production zsxq API endpoint
	DefaultBaseURL = "https://api.zsxq.com"
	// DefaultTimeout bounds a single attempt
	DefaultTimeout = 10 * time.Second
	// DefaultRetryCount is the number of retries after the first attempt
	DefaultRetryCount = 3
	// DefaultRetryDelay is the wait before the first retry
	DefaultRetryDelay = time.Second
	// DefaultAppVersion is the client version reported in user-agent and x-version
	DefaultAppVersion = "2.83.0"
	// DefaultSigningSecret is the shared HMAC key used by the official clients
	DefaultSigningSecret = "zsxq-sdk-secret"
)

// Config holds the configuration for the zsxq client.
// Only Token is required, every other field has a default.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithToken(os.Getenv("ZSXQ_TOKEN")).
//	    WithTimeout(5 * time.Second).
//	    WithRetries(2)
//
//	client, err := sdk.NewClient(config)
//
// NewClient validates a copy of the config, later changes to the value
// passed in do not affect the client.
type Config struct {
	// Token is the zsxq access token sent as the authorization header.
	// Required.
	Token string

	// BaseURL is the API root, without a trailing slash.
	// Default: "https://api.zsxq.com"
	BaseURL string

	// Timeout bounds one attempt including reading the response body.
	// Default: 10s
	Timeout time.Duration

	// RetryCount is the number of retries after the first attempt for
	// transport failures. Zero disables retries.
	// Default: 3
	RetryCount int

	// RetryDelay is the wait before the first retry. Each further retry
	// doubles it.
	// Default: 1s
	RetryDelay time.Duration

	// DeviceID is sent as x-aduid on every call of the client.
	// Default: a random UUID generated once per client
	DeviceID string

	// AppVersion is reported in the user-agent and x-version headers.
	// Default: "2.83.0"
	AppVersion string

	// SigningSecret is the HMAC-SHA1 key for x-signature.
	// Default: "zsxq-sdk-secret"
	SigningSecret string

	// TransportConfig holds HTTP transport settings.
	// Configures connection pooling and keep-alive behavior.
	TransportConfig TransportConfig

	// Logger receives debug entries for attempts and warnings for retries.
	// The token is never logged.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger

	// Observer for monitoring operations.
	// If nil, NoopObserver is used.
	Observer Observer

	// TracerProvider creates the span wrapping each logical call.
	// Default: the global OpenTelemetry provider
	TracerProvider trace.TracerProvider
}

// TransportConfig holds HTTP transport configuration for connection pooling.
//
// Example:
//
//	config.TransportConfig = sdk.TransportConfig{
//	    MaxIdleConns:    20,
//	    MaxConnsPerHost: 4,
//	    IdleConnTimeout: 60 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a Config with every default filled in except Token
// and DeviceID.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().WithToken(token))
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		RetryCount:    DefaultRetryCount,
		RetryDelay:    DefaultRetryDelay,
		AppVersion:    DefaultAppVersion,
		SigningSecret: DefaultSigningSecret,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Observer: &NoopObserver{},
	}
}

// WithToken sets the access token.
func (c *Config) WithToken(token string) *Config {
	c.Token = token
	return c
}

// WithBaseURL sets the API root. The URL should include the protocol.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8089")
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetries sets the number of retries after the first attempt.
// Set to 0 to disable automatic retries.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetries(5) // up to 6 attempts
func (c *Config) WithRetries(retryCount int) *Config {
	c.RetryCount = retryCount
	return c
}

// WithRetryDelay sets the base backoff delay.
func (c *Config) WithRetryDelay(delay time.Duration) *Config {
	c.RetryDelay = delay
	return c
}

// WithDeviceID pins the x-aduid header value.
func (c *Config) WithDeviceID(deviceID string) *Config {
	c.DeviceID = deviceID
	return c
}

// WithAppVersion sets the app version reported in user-agent and x-version.
func (c *Config) WithAppVersion(version string) *Config {
	c.AppVersion = version
	return c
}

// WithSigningSecret sets the HMAC-SHA1 key used for x-signature.
func (c *Config) WithSigningSecret(secret string) *Config {
	c.SigningSecret = secret
	return c
}

// WithLogger sets the logger used for attempt and retry entries.
//
// Example:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	config := sdk.DefaultConfig().WithLogger(logger.WithField("component", "zsxq"))
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	config := sdk.DefaultConfig().
//	    WithObserver(sdk.NewCompositeObserver(metrics, sdk.NewLogObserver(nil)))
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithTracerProvider sets the provider for the span wrapping each call.
func (c *Config) WithTracerProvider(provider trace.TracerProvider) *Config {
	c.TracerProvider = provider
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient on its own copy.
//
// Returns a KindConfiguration error if the token is empty or the base URL
// is malformed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return newConfigError("token must not be empty", ErrMissingToken)
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return newConfigError("invalid base URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newConfigError(fmt.Sprintf("invalid base URL %q", c.BaseURL), nil)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
	}
	if c.AppVersion == "" {
		c.AppVersion = DefaultAppVersion
	}
	if c.SigningSecret == "" {
		c.SigningSecret = DefaultSigningSecret
	}
	if c.TransportConfig.MaxIdleConns <= 0 {
		c.TransportConfig.MaxIdleConns = 100
	}
	if c.TransportConfig.MaxConnsPerHost <= 0 {
		c.TransportConfig.MaxConnsPerHost = 10
	}
	if c.TransportConfig.IdleConnTimeout <= 0 {
		c.TransportConfig.IdleConnTimeout = 90 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	return nil
}
