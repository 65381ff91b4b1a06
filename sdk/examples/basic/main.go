package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/yiancode/zsxq-sdk/sdk"
)

type group struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

type groupsResp struct {
	Groups []group `json:"groups"`
}

func main() {
	baseURL := os.Getenv("ZSXQ_BASE_URL")
	if baseURL == "" {
		// cmd/sandbox listens here by default
		baseURL = "http://127.0.0.1:8090"
	}

	config := sdk.DefaultConfig().
		WithToken(os.Getenv("ZSXQ_TOKEN")).
		WithBaseURL(baseURL).
		WithTimeout(10 * time.Second).
		WithRetries(3)

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Example 1: untyped call, resp_data as a map
	fmt.Println("--- Example 1: Current user ---")
	self, err := client.Get(ctx, "/v2/users/self", nil)
	if err != nil {
		log.Fatalf("Failed to get user: %v", err)
	}
	fmt.Printf("✓ User: %v\n", self["user"])

	// Example 2: typed call with query parameters
	fmt.Println("\n--- Example 2: Groups ---")
	groups, err := sdk.GetAs[groupsResp](ctx, client, "/v2/groups", url.Values{"count": {"20"}})
	if err != nil {
		log.Fatalf("Failed to list groups: %v", err)
	}
	for _, g := range groups.Groups {
		fmt.Printf("✓ %d %s (%s)\n", g.GroupID, g.Name, g.Type)
	}

	// Example 3: path templates
	fmt.Println("\n--- Example 3: Topics of a group ---")
	path := sdk.BuildPath("/v2/groups/{0}/topics", "1")
	if _, err := client.Get(ctx, path, url.Values{"scope": {"all"}}); err != nil {
		handleError(err)
	}

	// Example 4: error handling
	fmt.Println("\n--- Example 4: Error handling ---")
	_, err = client.Post(ctx, "/v2/checkins/1/join", map[string]any{"text": "day 1"})
	handleError(err)
}

// handleError shows how to branch on the error kinds
func handleError(err error) {
	if err == nil {
		fmt.Println("✓ No error")
		return
	}

	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		fmt.Printf("✗ %s (code=%d, request_id=%s)\n", sdkErr.Kind, sdkErr.Code, sdkErr.RequestID)
	}

	switch {
	case errors.Is(err, sdk.ErrTokenExpired):
		fmt.Println("  refresh the token and log in again")
	case errors.Is(err, sdk.ErrAuth):
		fmt.Println("  check ZSXQ_TOKEN")
	case errors.Is(err, sdk.ErrRateLimited):
		fmt.Printf("  wait %s before the next call\n", sdkErr.RetryAfter)
	case errors.Is(err, sdk.ErrResourceNotFound):
		fmt.Println("  the resource does not exist")
	case sdk.IsTransport(err):
		fmt.Println("  transport failure after all retries")
	default:
		fmt.Printf("  %v\n", err)
	}
}
