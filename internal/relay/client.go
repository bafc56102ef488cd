package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vincentbai/urltrail/internal/models"
	"github.com/vincentbai/urltrail/internal/observer"
)

const defaultClientTimeout = 2 * time.Second

// Client delivers observer messages to a relay over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Send posts msg as tabID's URL change.
func (c *Client) Send(ctx context.Context, tabID int, msg models.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.tabURL(tabID)+"/events", body)
}

func (c *Client) ForTab(tabID int) observer.Emitter {
	return observer.EmitterFunc(func(ctx context.Context, msg models.Message) error {
		return c.Send(ctx, tabID, msg)
	})
}

func (c *Client) TabClosed(ctx context.Context, tabID int) error {
	return c.do(ctx, http.MethodDelete, c.tabURL(tabID), nil)
}

func (c *Client) tabURL(tabID int) string {
	return c.baseURL + "/tabs/" + models.TabKey(tabID)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("relay rejected %s %s: %s", method, url, resp.Status)
	}
	return nil
}
