// Package sdk is the signed request execution core for the zsxq
// (知识星球) HTTP API. Resource wrappers for groups, topics, users and
// checkins are built on its four primitives: Get, Post, Put and Delete.
//
// # Features
//
// The SDK provides:
//   - HMAC-SHA1 request signing with fresh timestamp and request id per attempt
//   - One shared, lazily built HTTP connection pool per client
//   - Retries of transport failures with exponential backoff
//   - Envelope unwrapping into resp_data or a typed *Error
//   - Context support for cancellation and timeouts
//   - Observer hooks, Prometheus metrics and OpenTelemetry spans
//
// # Basic Usage
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/yiancode/zsxq-sdk/sdk"
//	)
//
//	func main() {
//	    client, err := sdk.NewClient(sdk.DefaultConfig().WithToken(os.Getenv("ZSXQ_TOKEN")))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    data, err := client.Get(context.Background(), "/v2/groups", nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Println(data["groups"])
//	}
//
// # Signing
//
// Every attempt carries authorization, x-timestamp, x-signature,
// x-request-id and x-aduid headers. The signature is
//
//	hex(HMAC-SHA1(secret, timestamp + "\n" + METHOD + "\n" + path [+ "\n" + body]))
//
// computed over the exact body bytes sent. The query string is not signed.
//
// # Retries
//
// A call makes at most RetryCount+1 attempts. Only timeouts and network
// failures (including 5xx responses without a failure envelope) are
// retried, waiting RetryDelay, 2*RetryDelay, 4*RetryDelay... between
// attempts. API failures are returned immediately.
//
// # Error Handling
//
// All failures are *Error values. Match them by kind or by family:
//
//	_, err := client.Post(ctx, path, body)
//	switch {
//	case errors.Is(err, sdk.ErrTokenExpired):
//	    // refresh the token
//	case errors.Is(err, sdk.ErrAuth):
//	    // any other authentication failure
//	case errors.Is(err, sdk.ErrRateLimited):
//	    var sdkErr *sdk.Error
//	    errors.As(err, &sdkErr)
//	    time.Sleep(sdkErr.RetryAfter)
//	}
//
// Every error carries the x-request-id of the attempt that produced it,
// see RequestIDOf.
package sdk
