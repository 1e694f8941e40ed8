package httpx

import (
	"errors"
	"fmt"
)

// NetworkError 表示对同一 URL 的抓取最终失败（重试额度耗尽，或遇到永久失败）。
// Attempts 是实际发出的请求次数；Err 是最后一次的底层原因。
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("抓取失败（尝试 %d 次）：%s：%v", e.Attempts, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork 判断 err 是否为 *NetworkError。
func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// StatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d：%s", e.StatusCode, e.URL)
}

// transient 判断一次尝试的失败是否值得重试。
//
// 规则：
// - 非 2xx 状态：仅 5xx 视为瞬时（服务端问题，可能自愈）；4xx 是调用方问题，永久失败
// - 其余传输层错误（连接拒绝/重置、超时）：瞬时
func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
