package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// BaseURLFunc provides the base HTTP URL of a status endpoint.
type BaseURLFunc func() string

// BaseURLFromEnv returns MULTIFLOW_HTTP or the default status address.
func BaseURLFromEnv() string {
	if v := os.Getenv("MULTIFLOW_HTTP"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:9100"
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// getJSON fetches url and decodes the body into out. Non-2xx responses are
// turned into errors carrying the server's error message when present.
func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("http error: %s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("http error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
