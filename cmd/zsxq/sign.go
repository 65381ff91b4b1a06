package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yiancode/zsxq-sdk/sdk"
)

type signOptions struct {
	timestamp string
	method    string
	path      string
	body      string
}

// newSignCommand prints the x-timestamp and x-signature for a request
// without sending it
func newSignCommand(a *app) *cobra.Command {
	opts := &signOptions{}

	cmd := &cobra.Command{
		Use:     "sign",
		Short:   "Compute the x-signature header for a request",
		Example: "  zsxq sign --method POST --path /v2/groups/1/topics --body '{\"text\":\"hi\"}'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := opts.timestamp
			if ts == "" {
				ts = strconv.FormatInt(time.Now().Unix(), 10)
			}
			if !strings.HasPrefix(opts.path, "/") {
				opts.path = "/" + opts.path
			}

			var body []byte
			if opts.body != "" {
				body = []byte(opts.body)
			}
			signature := sdk.Sign(a.v.GetString(keySigningSecret), ts, strings.ToUpper(opts.method), opts.path, body)

			fmt.Fprintf(a.stdout, "%s: %s\n", sdk.HeaderTimestamp, ts)
			fmt.Fprintf(a.stdout, "%s: %s\n", sdk.HeaderSignature, signature)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.timestamp, "timestamp", "", "unix seconds (default: now)")
	flags.StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	flags.StringVar(&opts.path, "path", "", "request path without the query string")
	flags.StringVar(&opts.body, "body", "", "exact body bytes as sent")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
