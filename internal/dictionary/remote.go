// Package dictionary answers whether a composed word exists. The word game
// only sees the jamo.Dictionary interface; this package supplies a remote
// API client and a local word list behind it.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote queries a search API that answers with
//
//	{"channel": {"total": N, ...}}
//
// and an empty body when nothing matched.
type Remote struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewRemote(baseURL, key string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Channel struct {
		Total int `json:"total"`
	} `json:"channel"`
}

// Lookup does an exact-match search for word.
func (r *Remote) Lookup(ctx context.Context, word string) (bool, error) {
	q := url.Values{}
	q.Set("key", r.key)
	q.Set("q", word)
	q.Set("req_type", "json")
	q.Set("advanced", "y")
	q.Set("method", "exact")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build dictionary request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("dictionary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("dictionary returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("read dictionary response: %w", err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return false, nil
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return false, fmt.Errorf("decode dictionary response: %w", err)
	}
	return sr.Channel.Total > 0, nil
}
