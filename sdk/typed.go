package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Typed helpers decode resp_data straight into T, so resource wrappers do
// not have to walk map[string]any.
//
// Example:
//
//	type GroupsResp struct {
//	    Groups []struct {
//	        GroupID int64  `json:"group_id"`
//	        Name    string `json:"name"`
//	    } `json:"groups"`
//	}
//
//	resp, err := sdk.GetAs[GroupsResp](ctx, client, "/v2/groups", nil)
//	if err != nil {
//	    return err
//	}
//	for _, g := range resp.Groups {
//	    fmt.Println(g.GroupID, g.Name)
//	}

// DoAs executes req and decodes resp_data into T. A decode failure is a
// KindInvalidResponse error.
func DoAs[T any](ctx context.Context, api API, req *Request) (T, error) {
	var result T
	var (
		raw       json.RawMessage
		requestID string
		err       error
	)
	if client, ok := api.(*Client); ok {
		raw, requestID, err = client.execute(ctx, req)
	} else {
		raw, err = api.Raw(ctx, req)
	}
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, newError(KindInvalidResponse, 0, "cannot decode resp_data", requestID, err)
	}
	return result, nil
}

// GetAs performs a signed GET and decodes resp_data into T.
func GetAs[T any](ctx context.Context, api API, path string, query url.Values) (T, error) {
	return DoAs[T](ctx, api, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// PostAs performs a signed POST and decodes resp_data into T.
//
// Example:
//
//	type CreatedTopic struct {
//	    Topic struct{ TopicID int64 `json:"topic_id"` } `json:"topic"`
//	}
//	created, err := sdk.PostAs[CreatedTopic](ctx, client, path, body)
func PostAs[T any](ctx context.Context, api API, path string, body any) (T, error) {
	return DoAs[T](ctx, api, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// PutAs performs a signed PUT and decodes resp_data into T.
func PutAs[T any](ctx context.Context, api API, path string, body any) (T, error) {
	return DoAs[T](ctx, api, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// DeleteAs performs a signed DELETE and decodes resp_data into T.
func DeleteAs[T any](ctx context.Context, api API, path string) (T, error) {
	return DoAs[T](ctx, api, &Request{Method: http.MethodDelete, Path: path})
}
