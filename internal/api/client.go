package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/utils"
)

// maxBodyBytes 限制读取的响应体大小
const maxBodyBytes = 4 << 20

// APIError 表示响应体无法按 JSON 解码，保留状态码和原始内容
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Message)
}

// 全局共享的HTTP客户端，实现连接池化
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		}
	})
	return sharedHTTPClient
}

type Client struct {
	endpoint string
	timeout  time.Duration
	doer     utils.Doer
}

type Option func(*Client)

// WithDoer 替换底层 HTTP 客户端，测试时使用
func WithDoer(d utils.Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithTimeout 设置单次请求的超时，0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient 创建聊天端点客户端
// endpoint: 完整的 POST 地址，例如 http://127.0.0.1:5000/chat
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		doer:     getSharedHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send 发送一条消息并返回解码后的响应
// 任何收到并成功解码的 HTTP 响应（包括 4xx/5xx）都以 *Reply 返回；
// 网络错误或响应体无法解码时返回 error
func (c *Client) Send(ctx context.Context, requestID, message string) (*Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var chatReply ChatReply
	if err := json.Unmarshal(data, &chatReply); err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	return &Reply{StatusCode: resp.StatusCode, ChatReply: chatReply}, nil
}
