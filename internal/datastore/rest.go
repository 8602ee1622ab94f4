package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// REST talks to the hosted hierarchical JSON database. Every node is
// addressable as <baseURL>/<path>.json; single-field equality queries use
// the orderBy/equalTo parameters.
type REST struct {
	baseURL string
	client  *http.Client
}

func NewREST(baseURL string) *REST {
	return &REST{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (r *REST) Write(ctx context.Context, path string, value map[string]any) error {
	_, err := r.do(ctx, http.MethodPut, r.nodeURL(path), value)
	return err
}

func (r *REST) Read(ctx context.Context, path string) (map[string]any, error) {
	body, err := r.do(ctx, http.MethodGet, r.nodeURL(path), nil)

	if err != nil {
		return nil, err
	}

	return decodeNode(body)
}

func (r *REST) Update(ctx context.Context, path string, partial map[string]any) error {
	_, err := r.do(ctx, http.MethodPatch, r.nodeURL(path), partial)
	return err
}

func (r *REST) Delete(ctx context.Context, path string) error {
	_, err := r.do(ctx, http.MethodDelete, r.nodeURL(path), nil)
	return err
}

func (r *REST) QueryEqual(ctx context.Context, collection, field, value string) (map[string]map[string]any, error) {
	// orderBy/equalTo expect JSON-encoded values, quotes included
	q := url.Values{}
	q.Set("orderBy", fmt.Sprintf("%q", field))
	q.Set("equalTo", fmt.Sprintf("%q", value))

	body, err := r.do(ctx, http.MethodGet, r.nodeURL(collection)+"?"+q.Encode(), nil)

	if err != nil {
		return nil, err
	}

	node, err := decodeNode(body)

	if err != nil && err != ErrNotFound {
		return nil, err
	}

	out := make(map[string]map[string]any, len(node))

	for key, v := range node {
		child, ok := v.(map[string]any)

		if ok {
			out[key] = child
		}
	}

	return out, nil
}

func (r *REST) nodeURL(path string) string {
	return r.baseURL + "/" + strings.Trim(path, "/") + ".json"
}

func (r *REST) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)

		if err != nil {
			return nil, err
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)

	if err != nil {
		return nil, err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("data store returned %d for %s %s", resp.StatusCode, method, url)
	}

	return raw, nil
}

// The service answers "null" for absent nodes rather than 404.
func decodeNode(raw []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))

	if trimmed == "" || trimmed == "null" {
		return nil, ErrNotFound
	}

	var node map[string]any

	err := json.Unmarshal(raw, &node)

	if err != nil {
		return nil, err
	}

	return node, nil
}
