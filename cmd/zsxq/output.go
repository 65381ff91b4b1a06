package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yiancode/zsxq-sdk/sdk"
)

func printJSON(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// printError writes err with the kind, code and request id of SDK errors
func printError(w io.Writer, err error) {
	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Error: %s\n", sdkErr.Message)
	fmt.Fprintf(w, "  kind:       %s\n", sdkErr.Kind)
	if sdkErr.Code != 0 {
		fmt.Fprintf(w, "  code:       %d\n", sdkErr.Code)
	}
	if sdkErr.RequestID != "" {
		fmt.Fprintf(w, "  request_id: %s\n", sdkErr.RequestID)
	}
	if sdkErr.RetryAfter > 0 {
		fmt.Fprintf(w, "  retry_after: %s\n", sdkErr.RetryAfter)
	}
}

// exitCode maps local failures to 2 and API or transport failures to 1
func exitCode(err error) int {
	switch sdk.KindOf(err) {
	case sdk.KindConfiguration:
		return 2
	case sdk.KindUnclassified:
		var sdkErr *sdk.Error
		if !errors.As(err, &sdkErr) {
			return 2
		}
	}
	return 1
}
