package api

import "net/http"

// ChatRequest 是发往聊天端点的请求体
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply 是聊天端点返回的 JSON 体
// 200 时只有 Response；429 时有 Error 和 RateLimited；其他状态码可能带 Error
type ChatReply struct {
	Response    string `json:"response,omitempty"`
	Error       string `json:"error,omitempty"`
	RateLimited bool   `json:"rate_limited,omitempty"`
}

// Reply 是一次已解码的 HTTP 响应
type Reply struct {
	StatusCode int
	ChatReply
}

// OK 报告是否为 200
func (r *Reply) OK() bool {
	return r.StatusCode == http.StatusOK
}

// TooManyRequests 报告是否为 429
func (r *Reply) TooManyRequests() bool {
	return r.StatusCode == http.StatusTooManyRequests
}
