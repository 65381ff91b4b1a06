package sdk

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	t.Run("basic metrics collection", func(t *testing.T) {
		collector := NewMetricsCollector()

		collector.OnRequestStart("GET", "/v2/groups")
		collector.OnRequestEnd("GET", "/v2/groups", 100*time.Millisecond, nil)

		collector.OnRequestStart("POST", "/v2/topics")
		collector.OnRequestEnd("POST", "/v2/topics", 50*time.Millisecond, nil)

		collector.OnRequestStart("GET", "/v2/groups")
		collector.OnRequestEnd("GET", "/v2/groups", 200*time.Millisecond, NewAPIError(CodeTokenExpired, "expired", "req-1"))

		metrics := collector.GetMetrics()

		requests := metrics["requests"].(map[string]int64)
		assert.Equal(t, int64(2), requests["GET /v2/groups"])
		assert.Equal(t, int64(1), requests["POST /v2/topics"])

		errs := metrics["errors"].(map[string]int64)
		assert.Equal(t, int64(1), errs["GET /v2/groups"])
		assert.Equal(t, int64(0), errs["POST /v2/topics"])

		kinds := metrics["error_kinds"].(map[string]int64)
		assert.Equal(t, int64(1), kinds["token_expired"])

		latencies := metrics["latencies"].(map[string][]time.Duration)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, latencies["GET /v2/groups"])
		assert.Len(t, latencies["POST /v2/topics"], 1)
	})

	t.Run("retry and connection metrics", func(t *testing.T) {
		collector := NewMetricsCollector()

		collector.OnRetryAttempt("GET", "/v2/groups", 1, 10*time.Millisecond, errors.New("reset"))
		collector.OnRetryAttempt("GET", "/v2/groups", 2, 20*time.Millisecond, errors.New("reset"))
		collector.OnConnectionCreated("https://api.zsxq.com")

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics["retries"].(map[string]int64)["GET /v2/groups"])
		assert.Equal(t, int64(1), metrics["connections_created"])
	})

	t.Run("foreign errors are unclassified", func(t *testing.T) {
		collector := NewMetricsCollector()
		collector.OnRequestEnd("GET", "/v2/groups", time.Millisecond, errors.New("boom"))

		kinds := collector.GetMetrics()["error_kinds"].(map[string]int64)
		assert.Equal(t, int64(1), kinds["unclassified"])
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		collector := NewMetricsCollector()
		collector.OnRequestStart("GET", "/v2/groups")

		snapshot := collector.GetMetrics()
		snapshot["requests"].(map[string]int64)["GET /v2/groups"] = 99

		assert.Equal(t, int64(1), collector.GetMetrics()["requests"].(map[string]int64)["GET /v2/groups"])
	})

	t.Run("concurrent metrics collection", func(t *testing.T) {
		collector := NewMetricsCollector()
		numGoroutines := 100
		numOperations := 100

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for i := 0; i < numGoroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					collector.OnRequestStart("GET", "/v2/groups")
					collector.OnRequestEnd("GET", "/v2/groups", time.Duration(j)*time.Microsecond, nil)
				}
			}()
		}

		wg.Wait()

		requests := collector.GetMetrics()["requests"].(map[string]int64)
		assert.Equal(t, int64(numGoroutines*numOperations), requests["GET /v2/groups"])
	})
}

func TestCompositeObserver(t *testing.T) {
	t.Run("multiple observers called", func(t *testing.T) {
		var called1, called2, called3 atomic.Int32

		composite := NewCompositeObserver(
			&mockObserver{onRequestStart: func(method, path string) { called1.Add(1) }},
			&mockObserver{onRequestStart: func(method, path string) { called2.Add(1) }},
			&mockObserver{onRequestStart: func(method, path string) { called3.Add(1) }},
		)
		composite.OnRequestStart("GET", "/v2/groups")

		assert.Equal(t, int32(1), called1.Load())
		assert.Equal(t, int32(1), called2.Load())
		assert.Equal(t, int32(1), called3.Load())
	})

	t.Run("all observer methods called", func(t *testing.T) {
		calls := make(map[string]int)
		var mu sync.Mutex
		record := func(name string) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
		}

		composite := NewCompositeObserver(&mockObserver{
			onRequestStart: func(method, path string) { record("onRequestStart") },
			onRequestEnd: func(method, path string, duration time.Duration, err error) {
				record("onRequestEnd")
			},
			onRetryAttempt: func(method, path string, attempt int, delay time.Duration, err error) {
				record("onRetryAttempt")
			},
			onConnectionCreated: func(baseURL string) { record("onConnectionCreated") },
		})

		composite.OnRequestStart("GET", "/v2/groups")
		composite.OnRequestEnd("GET", "/v2/groups", 100*time.Millisecond, nil)
		composite.OnRetryAttempt("POST", "/v2/topics", 1, 10*time.Millisecond, nil)
		composite.OnConnectionCreated("https://api.zsxq.com")

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, calls["onRequestStart"])
		assert.Equal(t, 1, calls["onRequestEnd"])
		assert.Equal(t, 1, calls["onRetryAttempt"])
		assert.Equal(t, 1, calls["onConnectionCreated"])
	})

	t.Run("observer panic is contained", func(t *testing.T) {
		panicObserver := &mockObserver{
			onRequestEnd: func(method, path string, duration time.Duration, err error) {
				panic("observer panic")
			},
		}

		called := false
		normalObserver := &mockObserver{
			onRequestEnd: func(method, path string, duration time.Duration, err error) {
				called = true
			},
		}

		composite := NewCompositeObserver(panicObserver, normalObserver)

		assert.NotPanics(t, func() {
			composite.OnRequestEnd("GET", "/v2/groups", time.Millisecond, nil)
		})
		assert.True(t, called, "second observer runs despite panic in the first")
	})

	t.Run("empty composite observer", func(t *testing.T) {
		composite := NewCompositeObserver()

		assert.NotPanics(t, func() {
			composite.OnRequestStart("GET", "/v2/groups")
			composite.OnRequestEnd("GET", "/v2/groups", 100*time.Millisecond, nil)
			composite.OnRetryAttempt("POST", "/v2/topics", 1, 10*time.Millisecond, nil)
			composite.OnConnectionCreated("https://api.zsxq.com")
		})
	})
}

func TestLogObserver(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	obs := NewLogObserver(logger)

	obs.OnRequestStart("GET", "/v2/groups")
	obs.OnRequestEnd("GET", "/v2/groups", 1500*time.Millisecond, nil)

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.DebugLevel, hook.AllEntries()[0].Level)
	done := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, done.Level)
	assert.Equal(t, "zsxq request completed", done.Message)
	assert.Equal(t, int64(1500), done.Data["duration_ms"])
	assert.Equal(t, "GET", done.Data["method"])
	assert.Equal(t, "/v2/groups", done.Data["path"])

	hook.Reset()
	failure := NewAPIError(CodeNotMember, "not a member", "req-9")
	obs.OnRequestEnd("GET", "/v2/groups/1", time.Millisecond, failure)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "not_member", entry.Data["error_kind"])
	assert.Equal(t, CodeNotMember, entry.Data["error_code"])
	assert.Equal(t, "req-9", entry.Data["request_id"])
	assert.Equal(t, failure, entry.Data[logrus.ErrorKey])

	hook.Reset()
	obs.OnRetryAttempt("GET", "/v2/groups", 1, 250*time.Millisecond, networkErr("req-10"))

	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "250ms", entry.Data["delay"])
	assert.Equal(t, "req-10", entry.Data["request_id"])
}

func TestNewLogObserver_NilLogger(t *testing.T) {
	obs := NewLogObserver(nil)
	assert.Equal(t, logrus.StandardLogger(), obs.logger)
}

// mockObserver is a test observer implementation specific to observer tests
type mockObserver struct {
	onRequestStart      func(method, path string)
	onRequestEnd        func(method, path string, duration time.Duration, err error)
	onRetryAttempt      func(method, path string, attempt int, delay time.Duration, err error)
	onConnectionCreated func(baseURL string)
}

func (m *mockObserver) OnRequestStart(method, path string) {
	if m.onRequestStart != nil {
		m.onRequestStart(method, path)
	}
}

func (m *mockObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	if m.onRequestEnd != nil {
		m.onRequestEnd(method, path, duration, err)
	}
}

func (m *mockObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	if m.onRetryAttempt != nil {
		m.onRetryAttempt(method, path, attempt, delay, err)
	}
}

func (m *mockObserver) OnConnectionCreated(baseURL string) {
	if m.onConnectionCreated != nil {
		m.onConnectionCreated(baseURL)
	}
}

func BenchmarkMetricsCollector(b *testing.B) {
	b.Run("OnRequestEnd", func(b *testing.B) {
		collector := NewMetricsCollector()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			collector.OnRequestEnd("GET", "/v2/groups", 100*time.Millisecond, nil)
		}
	})

	b.Run("ConcurrentOperations", func(b *testing.B) {
		collector := NewMetricsCollector()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				if i%2 == 0 {
					collector.OnRequestStart("GET", "/v2/groups")
				} else {
					collector.OnRequestEnd("GET", "/v2/groups", 100*time.Millisecond, nil)
				}
				i++
			}
		})
	})
}
