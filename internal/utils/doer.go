package utils

import "net/http"

// Doer 发送 HTTP 请求的最小接口，*http.Client 即满足
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}
