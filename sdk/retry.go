package sdk

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryStrategy defines how retries should be performed.
//
// The client always uses ExponentialBackoffStrategy built from
// Config.RetryCount and Config.RetryDelay; the interface exists so the
// retry loop can be exercised with other schedules.
type RetryStrategy interface {
	// NextInterval returns the delay before the next retry attempt.
	// The attempt parameter starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration

	// ShouldRetry reports whether another attempt may follow the given one
	// (1-based) that failed with err.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoffStrategy doubles the delay for every retry by default.
//
// The delay calculation is:
//
//	delay = InitialInterval * (Multiplier ^ (attempt-1))
//	delay = min(delay, MaxInterval) when MaxInterval > 0
//
// With InitialInterval 1s and Multiplier 2 this produces 1s, 2s, 4s...
type ExponentialBackoffStrategy struct {
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay. Zero means no cap.
	MaxInterval time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
}

// newBackoffStrategy derives the retry schedule from a validated config.
func newBackoffStrategy(config *Config) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialInterval: config.RetryDelay,
		Multiplier:      2.0,
		MaxAttempts:     config.RetryCount + 1,
	}
}

// NextInterval calculates the next retry interval
func (s *ExponentialBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	interval := float64(s.InitialInterval) * math.Pow(s.Multiplier, float64(attempt-1))
	if s.MaxInterval > 0 && interval > float64(s.MaxInterval) {
		interval = float64(s.MaxInterval)
	}
	return time.Duration(interval)
}

// ShouldRetry allows another attempt for transport failures while attempts remain
func (s *ExponentialBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return IsRetryable(err) && attempt < s.MaxAttempts
}

// retryState tracks one logical call through the retry loop.
type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateRetrying
	stateSucceeded
	stateFailed
)

func (s retryState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAttempting:
		return "attempting"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// attemptFunc performs one attempt and returns the envelope together with
// the attempt's request id.
type attemptFunc func(ctx context.Context, req *Request) (*envelope, string, error)

// retryExecutor handles retry execution with a given strategy. It keeps no
// per-call state, so one executor serves concurrent calls.
type retryExecutor struct {
	strategy RetryStrategy
	logger   logrus.FieldLogger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRetryExecutor(strategy RetryStrategy, logger logrus.FieldLogger, observer Observer) *retryExecutor {
	return &retryExecutor{
		strategy: strategy,
		logger:   logger,
		observer: observer,
		sleep:    sleepContext,
	}
}

// retryRun is the state of a single execute call.
type retryRun struct {
	state    retryState
	attempts int
}

// execute runs fn until it succeeds, fails with a non-retryable error, or
// runs out of attempts. The returned error is the last attempt's error.
func (re *retryExecutor) execute(ctx context.Context, req *Request, fn attemptFunc) (*envelope, string, error) {
	run := &retryRun{state: stateIdle}
	log := re.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.Path,
	})

	for {
		run.state = stateAttempting
		run.attempts++

		env, requestID, err := fn(ctx, req)
		if err == nil {
			run.state = stateSucceeded
			run.logTo(log, requestID)
			return env, requestID, nil
		}
		if !re.strategy.ShouldRetry(err, run.attempts) || ctx.Err() != nil {
			run.state = stateFailed
			run.logTo(log.WithError(err), requestID)
			return nil, requestID, err
		}

		run.state = stateRetrying
		delay := re.strategy.NextInterval(run.attempts)
		re.observer.OnRetryAttempt(req.Method, req.Path, run.attempts, delay, err)
		log.WithFields(logrus.Fields{
			"attempt":    run.attempts,
			"request_id": requestID,
			"delay":      delay.String(),
		}).WithError(err).Warn("zsxq attempt failed, retrying")

		if sleepErr := re.sleep(ctx, delay); sleepErr != nil {
			run.state = stateFailed
			return nil, requestID, backoffInterrupted(sleepErr, requestID)
		}
	}
}

func (r *retryRun) logTo(log logrus.FieldLogger, requestID string) {
	log.WithFields(logrus.Fields{
		"attempt":    r.attempts,
		"request_id": requestID,
		"state":      r.state.String(),
	}).Debug("zsxq call finished")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffInterrupted converts a context error raised while waiting
// between attempts.
func backoffInterrupted(err error, requestID string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newTransportError(KindTimeout, CodeTimeout, "deadline exceeded during retry backoff", requestID, err)
	}
	return newError(KindCanceled, 0, "request canceled during retry backoff", requestID, err)
}
