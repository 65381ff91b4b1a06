package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/yiancode/zsxq-sdk/internal/telemetry"
	"github.com/yiancode/zsxq-sdk/sdk"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const envPrefix = "ZSXQ"

const longHelp = `zsxq signs and sends requests to the zsxq API, printing resp_data as JSON.

Settings come from flags, ZSXQ_* environment variables (ZSXQ_TOKEN,
ZSXQ_BASE_URL, ...) or a YAML config file, in that order of precedence.`

// Setting keys, shared by flags, ZSXQ_* variables and the config file.
const (
	keyToken         = "token"
	keyBaseURL       = "base-url"
	keyTimeout       = "timeout"
	keyRetries       = "retries"
	keyRetryDelay    = "retry-delay"
	keyDeviceID      = "device-id"
	keyAppVersion    = "app-version"
	keySigningSecret = "signing-secret"
	keyLogLevel      = "log-level"
)

// app carries the resolved settings through the command tree.
type app struct {
	v          *viper.Viper
	configPath string
	stdout     io.Writer
	stderr     io.Writer
	logger     *logrus.Logger
}

// newViper builds a viper instance reading ZSXQ_* variables, with "-" in
// keys mapped to "_" so base-url resolves to ZSXQ_BASE_URL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// newRootCommand creates the zsxq command with its global flags and subcommands
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: newViper(), stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:     "zsxq",
		Short:   "Signed calls against the zsxq API",
		Long:    longHelp,
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default: ./zsxq.yaml or ~/.config/zsxq/zsxq.yaml)")
	pf.String(keyToken, "", "access token sent as authorization")
	pf.String(keyBaseURL, sdk.DefaultBaseURL, "API base URL")
	pf.Duration(keyTimeout, sdk.DefaultTimeout, "timeout per attempt")
	pf.Int(keyRetries, sdk.DefaultRetryCount, "retries after the first attempt for transport failures")
	pf.Duration(keyRetryDelay, sdk.DefaultRetryDelay, "delay before the first retry, doubled for each further retry")
	pf.String(keyDeviceID, "", "x-aduid device id (default: random per invocation)")
	pf.String(keyAppVersion, sdk.DefaultAppVersion, "app version reported in user-agent and x-version")
	pf.String(keySigningSecret, sdk.DefaultSigningSecret, "HMAC-SHA1 signing secret")
	pf.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")

	for _, key := range []string{
		keyToken, keyBaseURL, keyTimeout, keyRetries, keyRetryDelay,
		keyDeviceID, keyAppVersion, keySigningSecret, keyLogLevel,
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(key))
	}

	cmd.AddCommand(
		newSignCommand(a),
		newRequestCommand(a, "get"),
		newRequestCommand(a, "post"),
		newRequestCommand(a, "put"),
		newRequestCommand(a, "delete"),
	)
	return cmd
}

// init reads the config file and builds the logger
func (a *app) init() error {
	if a.configPath != "" {
		a.v.SetConfigFile(a.configPath)
	} else {
		a.v.SetConfigName("zsxq")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.config/zsxq")
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configPath != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	telCfg := telemetry.NewConfigFromEnv("zsxq-cli")
	telCfg.LogLevel = a.v.GetString(keyLogLevel)
	a.logger = telemetry.NewLogger(telCfg, a.stderr)

	if telCfg.EnableTracing {
		if err := telemetry.InitTracing(telCfg); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	return nil
}

// sdkConfig builds the client configuration from the resolved settings
func (a *app) sdkConfig() *sdk.Config {
	return sdk.DefaultConfig().
		WithToken(a.v.GetString(keyToken)).
		WithBaseURL(a.v.GetString(keyBaseURL)).
		WithTimeout(a.v.GetDuration(keyTimeout)).
		WithRetries(a.v.GetInt(keyRetries)).
		WithRetryDelay(a.v.GetDuration(keyRetryDelay)).
		WithDeviceID(a.v.GetString(keyDeviceID)).
		WithAppVersion(a.v.GetString(keyAppVersion)).
		WithSigningSecret(a.v.GetString(keySigningSecret)).
		WithLogger(a.logger).
		WithObserver(sdk.NewLogObserver(a.logger)).
		WithTracerProvider(otel.GetTracerProvider())
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = telemetry.CloseTracing(shutdownCtx)

	if err != nil {
		printError(stderr, err)
		return exitCode(err)
	}
	return 0
}
