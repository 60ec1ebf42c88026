// Package workspace talks to the Google Workspace MCP server: a single HTTP
// endpoint speaking a JSON-RPC 2.0 envelope, bearer-authenticated with the
// caller's Google OAuth token.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

const maxResponseSizeBytes = 4 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:8000"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ToolInfo describes one tool the MCP server advertises.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	reqID      atomic.Int64
}

var _ contractx.WorkspaceAPI = (*Client)(nil)

// NewClient builds a client bound to one bearer token. Tokens are
// user-specific, so callers must never share a client across users; use
// ClientCache for that.
func NewClient(cfg Config, token string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c == nil || c.baseURL == "" {
		return nil, errors.New("workspace client is not configured")
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute rpc request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: mcp http status=%d body=%s", contractx.ErrUpstream, resp.StatusCode, string(raw))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUpstream, parsed.Error.Message)
	}
	return parsed.Result, nil
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	return c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// ListTools fetches the tool catalog the MCP server advertises.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Tools []ToolInfo `json:"tools"`
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &wrapper); err != nil {
			return nil, fmt.Errorf("decode tool list: %w", err)
		}
	}
	return wrapper.Tools, nil
}

func (c *Client) ReadDoc(ctx context.Context, docID string) (json.RawMessage, error) {
	return c.callTool(ctx, "gdocs_read", map[string]any{"document_id": docID})
}

func (c *Client) UpdateDoc(ctx context.Context, docID, content string) error {
	_, err := c.callTool(ctx, "gdocs_update", map[string]any{
		"document_id": docID,
		"content":     content,
	})
	return err
}

func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, sheetRange string) (json.RawMessage, error) {
	args := map[string]any{"spreadsheet_id": spreadsheetID}
	if sheetRange != "" {
		args["range"] = sheetRange
	}
	return c.callTool(ctx, "gsheets_read", args)
}

func (c *Client) UpdateSheet(ctx context.Context, spreadsheetID, sheetRange string, values [][]any) error {
	_, err := c.callTool(ctx, "gsheets_update", map[string]any{
		"spreadsheet_id": spreadsheetID,
		"range":          sheetRange,
		"values":         values,
	})
	return err
}

func (c *Client) ListFiles(ctx context.Context, query string) (json.RawMessage, error) {
	args := map[string]any{}
	if query != "" {
		args["query"] = query
	}
	return c.callTool(ctx, "gdrive_list", args)
}

// FileMetadata fetches a file's metadata, falling back to a list-and-filter
// lookup when the direct call fails.
func (c *Client) FileMetadata(ctx context.Context, fileID string) (map[string]any, error) {
	result, err := c.callTool(ctx, "gdrive_get", map[string]any{"file_id": fileID})
	if err == nil {
		meta := map[string]any{}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &meta); err != nil {
				return nil, fmt.Errorf("decode file metadata: %w", err)
			}
		}
		return meta, nil
	}

	listed, listErr := c.ListFiles(ctx, fmt.Sprintf("id='%s'", fileID))
	if listErr != nil {
		return nil, fmt.Errorf("%w: file %s", contractx.ErrNotFound, fileID)
	}
	var files []map[string]any
	if unmarshalErr := json.Unmarshal(listed, &files); unmarshalErr != nil || len(files) == 0 {
		return nil, fmt.Errorf("%w: file %s", contractx.ErrNotFound, fileID)
	}
	return files[0], nil
}

// ReadFile fetches metadata, dispatches on the MIME type, and attaches the
// fetched content under "content". Non-doc, non-sheet types return metadata
// alone.
func (c *Client) ReadFile(ctx context.Context, fileID string) (map[string]any, error) {
	meta, err := c.FileMetadata(ctx, fileID)
	if err != nil {
		return nil, err
	}

	mimeType, _ := meta["mimeType"].(string)
	if mimeType == "" {
		mimeType, _ = meta["mime_type"].(string)
	}

	switch {
	case strings.Contains(mimeType, "document"):
		content, err := c.ReadDoc(ctx, fileID)
		if err != nil {
			return nil, err
		}
		meta["content"] = content
	case strings.Contains(mimeType, "spreadsheet"):
		content, err := c.ReadSheet(ctx, fileID, "")
		if err != nil {
			return nil, err
		}
		meta["content"] = content
	}
	return meta, nil
}

// ClientCache hands out per-token clients. Each user's requests authenticate
// independently; two users must never share a client.
type ClientCache struct {
	mu      sync.Mutex
	cfg     Config
	clients map[string]*Client
}

func NewClientCache(cfg Config) *ClientCache {
	return &ClientCache{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Client returns the cached client for the token, creating one on first use.
// An empty token falls back to the configured API key.
func (cc *ClientCache) Client(token string) *Client {
	key := strings.TrimSpace(token)
	if key == "" {
		key = "default"
		token = cc.cfg.APIKey
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if client, ok := cc.clients[key]; ok {
		return client
	}
	client := NewClient(cc.cfg, token)
	cc.clients[key] = client
	return client
}
