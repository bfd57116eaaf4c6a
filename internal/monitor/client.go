package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zsiec/cloudstream/internal/registry"
	"github.com/zsiec/cloudstream/internal/stream"
)

// Client reads session state and frame history from a cloudstream server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// gets a client with a 5 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Session(ctx context.Context) (stream.Session, error) {
	var s stream.Session
	err := c.getJSON(ctx, "/api/v1/session", &s)
	return s, err
}

// History returns up to limit frames, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]registry.Entry, error) {
	var resp struct {
		Frames []registry.Entry `json:"frames"`
	}
	if err := c.getJSON(ctx, "/api/v1/frames/history?limit="+strconv.Itoa(limit), &resp); err != nil {
		return nil, err
	}
	return resp.Frames, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
