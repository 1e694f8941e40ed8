package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout 是单次尝试的超时（不是整次 Fetch 的总预算）。
	DefaultTimeout = 30 * time.Second
	// DefaultRetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	DefaultRetryMax = 2

	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Options 是 Client 的构造参数；零值字段取默认值。
type Options struct {
	// ProxyURL 非空时所有请求走代理，且禁用 keep-alive（每请求新连接）。
	ProxyURL string
	Timeout  time.Duration
	RetryMax int
}

// Client 把“UA 池 + 代理 + 超时 + 有界重试退避”固化为统一抓取策略。
//
// 设计目标：catalog / pipeline 只负责“定位页面 + 解析内容”，不关心网络策略细节。
//
// 超时模型：每次尝试各自受 Timeout 约束（per-attempt）。最坏总时延
// = Timeout × (RetryMax+1) + 各次退避之和，有界。
type Client struct {
	hc       *http.Client
	retryMax int
	ua       *uaPool
}

// 可替换的等待函数：测试时替换掉真实 sleep，保持用例快速。
var sleepFunc = sleepCtx

// New 构造 Client。
//
// 规则：
// - proxyURL 非空：必须走代理，且禁用 keep-alive（代理池轮换依赖该行为）
// - 内置 UA 池：每个请求随机 UA
// - 有界重试 + 单次尝试超时
func New(opt Options) (*Client, error) {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryMax := opt.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if p := strings.TrimSpace(opt.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("proxy url 无效：%w", err)
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
	}

	return &Client{
		hc: &http.Client{
			Transport: base,
			Timeout:   timeout,
		},
		retryMax: retryMax,
		ua:       globalUA,
	}, nil
}

// Fetch 抓取 URL 并返回响应体字节。
//
// 约束：
// - 只对瞬时失败重试（连接错误、超时、5xx）；4xx 与畸形 URL 视为永久失败，不重试
// - 重试间隔为指数退避 + 抖动（见 Backoff）
// - ctx 取消后立即停止（包括退避等待期间）
// - 所有尝试失败后返回 *NetworkError（携带尝试次数与最后一次底层原因）
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("URL 无效：%w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL 必须是 http/https：%q", rawURL)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleepFunc(ctx, withJitter(Backoff(attempt))); err != nil {
				break
			}
		}
		attempts++

		b, err := c.fetchOnce(ctx, u.String())
		if err == nil {
			return b, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// ctx 已取消：不再重试，直接返回（更可解释）。
			break
		}
		if !transient(err) {
			break
		}
	}
	return nil, &NetworkError{URL: u.String(), Attempts: attempts, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua.random())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return b, nil
}

// Backoff 返回第 attempt 次重试（attempt ≥ 1）前的基准等待时长。
// 纯函数：指数增长，上限 backoffCap；抖动由调用方叠加。
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// withJitter 在基准时长上叠加 ±25% 的随机抖动，避免多请求同步重试。
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	f := 0.75 + jitterRnd.Float64()*0.5
	jitterMu.Unlock()
	return time.Duration(float64(d) * f)
}

var (
	jitterMu  sync.Mutex
	jitterRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	// 尽量保持 UA 列表短小但多样；未来可扩充（不对外暴露配置）。
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
