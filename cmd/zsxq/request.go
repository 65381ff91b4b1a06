package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yiancode/zsxq-sdk/sdk"
)

type requestOptions struct {
	args  []string
	query []string
	data  string
}

// newRequestCommand builds the get, post, put and delete commands
func newRequestCommand(a *app, verb string) *cobra.Command {
	opts := &requestOptions{}
	method := strings.ToUpper(verb)
	withBody := method == http.MethodPost || method == http.MethodPut

	cmd := &cobra.Command{
		Use:     verb + " PATH",
		Short:   fmt.Sprintf("Send a signed %s and print resp_data", method),
		Example: fmt.Sprintf("  zsxq %s /v2/groups/{0}/topics --arg 123 --query count=20", verb),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.build(method, args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.send(cmd, req)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.args, "arg", nil, "value substituted for {0}, {1}, ... in PATH (repeatable)")
	flags.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter as key=value (repeatable)")
	if withBody {
		flags.StringVarP(&opts.data, "data", "d", "", "JSON body, @file to read it from a file or @- for stdin")
	}
	return cmd
}

// build turns the flags into an SDK request
func (o *requestOptions) build(method, pattern string, stdin io.Reader) (*sdk.Request, error) {
	req := &sdk.Request{
		Method: method,
		Path:   sdk.BuildPath(pattern, o.args...),
	}

	query, err := parseQuery(o.query)
	if err != nil {
		return nil, err
	}
	req.Query = query

	if o.data != "" {
		body, err := readData(o.data, stdin)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return req, nil
}

func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --query %q: expected key=value", pair)
		}
		query.Add(key, value)
	}
	return query, nil
}

// readData returns the body as raw JSON so it is sent exactly as given
func readData(data string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("--data is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// send executes req and prints resp_data
func (a *app) send(cmd *cobra.Command, req *sdk.Request) error {
	client, err := sdk.NewClient(a.sdkConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := client.Raw(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(a.stdout, data)
}
