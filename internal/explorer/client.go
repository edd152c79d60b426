package explorer

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

	xerrors "NeoX-Agent/internal/errors"
)

// DefaultAPIURL 是 Neo X 测试网 Blockscout 的 API 地址。
const DefaultAPIURL = "https://xt4scan.ngd.network:8877/api"

// Config 描述浏览器客户端的参数。
type Config struct {
	APIURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 调用 Blockscout 兼容的 REST API。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建浏览器客户端。
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// BaseURL 返回 API 根地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetAddress 查询地址信息。响应体为空时返回 nil。
func (c *Client) GetAddress(ctx context.Context, address string) (*AddressInfo, error) {
	var out *AddressInfo
	if err := c.get(ctx, "/v1/addresses/"+url.PathEscape(address), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlocks 查询最新的区块列表。
func (c *Client) GetBlocks(ctx context.Context) (*BlocksPage, error) {
	var out *BlocksPage
	if err := c.get(ctx, "/v1/blocks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransaction 查询交易详情。
func (c *Client) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	var out *Transaction
	if err := c.get(ctx, "/v1/transactions/"+url.PathEscape(hash), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStats 查询网络统计信息。
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var out *Stats
	if err := c.get(ctx, "/v1/stats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "构建浏览器请求失败")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeExplorerFailure, err, "请求区块浏览器失败")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeExplorerFailure, err, "读取浏览器响应失败")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		code := xerrors.CodeExplorerFailure
		if resp.StatusCode == http.StatusNotFound {
			code = xerrors.CodeNotFound
		}
		return xerrors.New(code, fmt.Sprintf("Request failed with status code %d", resp.StatusCode))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return xerrors.Wrap(xerrors.CodeExplorerFailure, err, "解析浏览器响应失败")
	}
	return nil
}
