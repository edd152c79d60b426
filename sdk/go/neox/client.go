package neox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the NeoX agent REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
}

// Content is a single piece of text produced by an action.
type Content struct {
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Example is one turn of an action usage example.
type Example struct {
	User    string  `json:"user"`
	Content Content `json:"content"`
}

// Action describes an action exposed by the agent.
type Action struct {
	Name        string      `json:"name"`
	Similes     []string    `json:"similes"`
	Description string      `json:"description"`
	Examples    [][]Example `json:"examples"`
}

// Plugin lists the actions of the agent's query plugin.
type Plugin struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actions     []Action `json:"actions"`
}

// Invocation is the payload used to run an action.
type Invocation struct {
	Text    string         `json:"text"`
	UserID  string         `json:"user_id,omitempty"`
	RoomID  string         `json:"room_id,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// InvocationResult carries every response the action emitted.
type InvocationResult struct {
	Action    string    `json:"action"`
	Responses []Content `json:"responses"`
}

// Memory is a stored conversation memory.
type Memory struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	AgentID   string         `json:"agent_id"`
	RoomID    string         `json:"room_id"`
	Content   Content        `json:"content"`
	Metadata  MemoryMetadata `json:"metadata"`
	CreatedAt int64          `json:"created_at"`
}

// MemoryMetadata links a memory back to the mention it was built from.
type MemoryMetadata struct {
	MentionID       string `json:"mention_id"`
	Username        string `json:"username"`
	FormattedThread string `json:"formatted_thread"`
}

// APIError represents a non-2xx response from the agent.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("neox api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the agent API. When httpClient is nil, a
// default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAPIKey sets the bearer key sent with every request. An empty key disables
// the Authorization header.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// ListActions returns the query plugin and its actions.
func (c *Client) ListActions(ctx context.Context) (Plugin, error) {
	var plugin Plugin
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, nil, &plugin); err != nil {
		return Plugin{}, err
	}
	return plugin, nil
}

// InvokeAction runs the named action. Similes are accepted as names.
func (c *Client) InvokeAction(ctx context.Context, name string, inv Invocation) (InvocationResult, error) {
	var result InvocationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/actions/"+name, nil, inv, &result); err != nil {
		return InvocationResult{}, err
	}
	return result, nil
}

// ListMemories returns up to limit of the most recent conversation memories.
func (c *Client) ListMemories(ctx context.Context, limit int) ([]Memory, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var memories []Memory
	if err := c.do(ctx, http.MethodGet, "/api/v1/memories", query, nil, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	key := c.apiKey
	c.mu.RUnlock()
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
