//go:build integration
// +build integration

package sdk_test

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiancode/zsxq-sdk/internal/sandbox"
	"github.com/yiancode/zsxq-sdk/sdk"
)

// Integration tests run the client against the sandbox server over a real
// listener.
// Run with: go test -tags=integration ./sdk

func startSandbox(t *testing.T, cfg *sandbox.Config) (*sandbox.Server, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv := sandbox.New(cfg, sandbox.WithLogger(logger))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, "http://" + ln.Addr().String()
}

func newClient(t *testing.T, baseURL string, configure func(*sdk.Config) *sdk.Config) *sdk.Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	config := sdk.DefaultConfig().
		WithToken("integration-token").
		WithBaseURL(baseURL).
		WithTimeout(time.Second).
		WithRetries(2).
		WithRetryDelay(5 * time.Millisecond).
		WithLogger(logger)
	if configure != nil {
		config = configure(config)
	}

	client, err := sdk.NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

type topic struct {
	TopicID int64  `json:"topic_id"`
	Text    string `json:"text"`
}

type topicResp struct {
	Topic topic `json:"topic"`
}

func TestIntegration_FullClientLifecycle(t *testing.T) {
	srv, baseURL := startSandbox(t, nil)
	srv.Script().Set(http.MethodPost, "/v2/groups/1/topics",
		sandbox.Step{Envelope: sandbox.Success(map[string]interface{}{"topic": topic{TopicID: 42, Text: "hello"}})})
	srv.Script().Set(http.MethodPut, "/v2/topics/42",
		sandbox.Step{Envelope: sandbox.Success(map[string]interface{}{"topic": topic{TopicID: 42, Text: "edited"}})})
	srv.Script().Set(http.MethodDelete, "/v2/topics/42", sandbox.Step{Envelope: sandbox.Success(nil)})

	client := newClient(t, baseURL, nil)
	ctx := context.Background()

	t.Run("read defaults", func(t *testing.T) {
		self, err := client.Get(ctx, "/v2/users/self", nil)
		require.NoError(t, err)
		assert.Contains(t, self, "user")

		groups, err := sdk.GetAs[struct {
			Groups []struct {
				GroupID int64  `json:"group_id"`
				Name    string `json:"name"`
			} `json:"groups"`
		}](ctx, client, "/v2/groups", nil)
		require.NoError(t, err)
		require.Len(t, groups.Groups, 1)
		assert.Equal(t, int64(1), groups.Groups[0].GroupID)
	})

	t.Run("write topic", func(t *testing.T) {
		created, err := sdk.PostAs[topicResp](ctx, client, sdk.BuildPath("/v2/groups/{0}/topics", "1"),
			map[string]string{"text": "hello"})
		require.NoError(t, err)
		assert.Equal(t, int64(42), created.Topic.TopicID)

		updated, err := sdk.PutAs[topicResp](ctx, client, "/v2/topics/42", map[string]string{"text": "edited"})
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Topic.Text)

		deleted, err := client.Delete(ctx, "/v2/topics/42")
		require.NoError(t, err)
		assert.Empty(t, deleted)
	})

	t.Run("every call is signed and unique", func(t *testing.T) {
		requests := srv.Journal().Requests()
		require.Len(t, requests, 5)

		ids := map[string]bool{}
		for _, r := range requests {
			assert.Empty(t, r.Rejection, "%s %s rejected", r.Method, r.Path)
			assert.Equal(t, client.DeviceID(), r.DeviceID)
			assert.False(t, ids[r.RequestID])
			ids[r.RequestID] = true
		}
		assert.Equal(t, `{"text":"hello"}`, requests[2].Body)
	})
}

func TestIntegration_Retries(t *testing.T) {
	t.Run("5xx then success", func(t *testing.T) {
		srv, baseURL := startSandbox(t, nil)
		srv.Script().Set(http.MethodGet, "/v2/groups/7",
			sandbox.Step{Status: http.StatusServiceUnavailable, Raw: "busy"},
			sandbox.Step{Status: http.StatusBadGateway, Raw: "bad gateway"},
			sandbox.Step{Envelope: sandbox.Success(map[string]interface{}{"group": map[string]int{"group_id": 7}})},
		)

		metrics := sdk.NewMetricsCollector()
		client := newClient(t, baseURL, func(c *sdk.Config) *sdk.Config { return c.WithObserver(metrics) })

		data, err := client.Get(context.Background(), "/v2/groups/7", nil)
		require.NoError(t, err)
		assert.Contains(t, data, "group")
		assert.Equal(t, 3, srv.Journal().Count(http.MethodGet, "/v2/groups/7"))
		assert.Equal(t, int64(2), metrics.GetMetrics()["retries"].(map[string]int64)["GET /v2/groups/7"])
	})

	t.Run("dropped connection then success", func(t *testing.T) {
		srv, baseURL := startSandbox(t, nil)
		srv.Script().Set(http.MethodGet, "/v2/groups/8",
			sandbox.Step{Drop: true},
			sandbox.Step{Envelope: sandbox.Success(map[string]interface{}{})},
		)

		client := newClient(t, baseURL, nil)
		_, err := client.Get(context.Background(), "/v2/groups/8", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, srv.Script().Served(http.MethodGet, "/v2/groups/8"))
	})

	t.Run("slow responses exhaust retries as timeouts", func(t *testing.T) {
		srv, baseURL := startSandbox(t, nil)
		srv.Script().Set(http.MethodGet, "/v2/groups/9",
			sandbox.Step{DelayMS: 300, Envelope: sandbox.Success(nil)})

		client := newClient(t, baseURL, func(c *sdk.Config) *sdk.Config {
			return c.WithTimeout(50 * time.Millisecond).WithRetries(1)
		})
		_, err := client.Get(context.Background(), "/v2/groups/9", nil)

		assert.ErrorIs(t, err, sdk.ErrTimeout)
		assert.Equal(t, sdk.CodeTimeout, sdk.CodeOf(err))
		assert.Equal(t, 2, srv.Script().Served(http.MethodGet, "/v2/groups/9"))
	})

	t.Run("envelope failures are final", func(t *testing.T) {
		srv, baseURL := startSandbox(t, nil)
		srv.Script().Set(http.MethodPost, "/v2/checkins/3/join",
			sandbox.Step{Envelope: sandbox.Failure(sdk.CodeCheckinClosed, "closed")})

		client := newClient(t, baseURL, nil)
		_, err := client.Post(context.Background(), "/v2/checkins/3/join", nil)

		assert.ErrorIs(t, err, sdk.ErrCheckinClosed)
		assert.ErrorIs(t, err, sdk.ErrBusiness)
		assert.Equal(t, 1, srv.Journal().Count(http.MethodPost, "/v2/checkins/3/join"))
	})
}

func TestIntegration_Authentication(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.Tokens = []string{"integration-token"}
	srv, baseURL := startSandbox(t, cfg)

	t.Run("wrong secret", func(t *testing.T) {
		client := newClient(t, baseURL, func(c *sdk.Config) *sdk.Config { return c.WithSigningSecret("not-the-secret") })
		_, err := client.Get(context.Background(), "/v2/groups", nil)

		assert.ErrorIs(t, err, sdk.ErrSignatureInvalid)
		assert.ErrorIs(t, err, sdk.ErrAuth)
		assert.False(t, sdk.IsRetryable(err))
	})

	t.Run("unknown token", func(t *testing.T) {
		client := newClient(t, baseURL, func(c *sdk.Config) *sdk.Config { return c.WithToken("stolen") })
		_, err := client.Get(context.Background(), "/v2/groups", nil)

		assert.ErrorIs(t, err, sdk.ErrTokenInvalid)
		requests := srv.Journal().Requests()
		assert.Equal(t, requests[len(requests)-1].RequestID, sdk.RequestIDOf(err))
	})
}

func TestIntegration_RateLimit(t *testing.T) {
	srv, baseURL := startSandbox(t, nil)
	limited := sandbox.Failure(sdk.CodeRateLimit, "too many requests")
	limited.RetryAfter = 30
	srv.Script().Set(http.MethodGet, "/v2/search", sandbox.Step{Status: http.StatusTooManyRequests, Envelope: limited})

	client := newClient(t, baseURL, nil)
	_, err := client.Get(context.Background(), "/v2/search", nil)

	var sdkErr *sdk.Error
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, sdk.KindRateLimit, sdkErr.Kind)
	assert.Equal(t, 30*time.Second, sdkErr.RetryAfter)
	assert.Equal(t, 1, srv.Journal().Count(http.MethodGet, "/v2/search"))
}

func TestIntegration_ConcurrentOperations(t *testing.T) {
	srv, baseURL := startSandbox(t, nil)

	reg := prometheus.NewRegistry()
	observer := sdk.NewPrometheusObserver(reg)
	client := newClient(t, baseURL, func(c *sdk.Config) *sdk.Config { return c.WithObserver(observer) })

	const workers = 10
	const perWorker = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := client.Get(context.Background(), "/v2/groups", nil)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, workers*perWorker, srv.Journal().Count(http.MethodGet, "/v2/groups"))
	expected := `
# HELP zsxq_connections_created_total Total number of HTTP clients created by the connection manager
# TYPE zsxq_connections_created_total counter
zsxq_connections_created_total 1
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "zsxq_connections_created_total"))
	series, err := promtest.GatherAndCount(reg, "zsxq_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}
