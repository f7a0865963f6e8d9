package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a thin HTTP client for the node API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
// A bare host:port gets an http:// prefix.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Nodes fetches the provisioned nodes.
func (c *Client) Nodes(ctx context.Context) (NodesResponse, error) {
	var resp NodesResponse
	err := c.getJSON(ctx, "/nodes", &resp)
	return resp, err
}

// Flows fetches per-flow stats.
func (c *Client) Flows(ctx context.Context) (FlowsResponse, error) {
	var resp FlowsResponse
	err := c.getJSON(ctx, "/flows", &resp)
	return resp, err
}

// Links fetches the flow graph.
func (c *Client) Links(ctx context.Context) (LinksResponse, error) {
	var resp LinksResponse
	err := c.getJSON(ctx, "/links", &resp)
	return resp, err
}

// Schedule fetches the installed schedule.
func (c *Client) Schedule(ctx context.Context) (ScheduleResponse, error) {
	var resp ScheduleResponse
	err := c.getJSON(ctx, "/schedule", &resp)
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("request failed: %s: %s", res.Status, msg)
		}
		return fmt.Errorf("request failed: %s", res.Status)
	}

	decoder := json.NewDecoder(res.Body)
	return decoder.Decode(out)
}
