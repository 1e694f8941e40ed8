package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vmoranv/xgfp/internal/domain"
	"github.com/vmoranv/xgfp/internal/infra/httpx"
)

// Fetcher 是 catalog 对网络层的最小依赖（生产实现是 infra/httpx.Client）。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Parser 把原始页面字节解码为结构化记录。
//
// 约束：实现必须是纯函数（相同输入 => 相同输出），不发网络请求、不做缓存。
type Parser interface {
	Listing(page []byte, baseURL string) ([]domain.Video, error)
	Detail(page []byte, pageURL string) (domain.Video, error)
	Categories(page []byte, baseURL string) ([]Category, error)
}

// Category 是分类页解析出的单个分类。
type Category struct {
	Name string
	Slug string
	URL  string
}

// Client 汇集站点的全部目录操作：抓页面交给 Fetcher，解码交给 Parser，
// 自己只负责定位 URL 与失败归类。
type Client struct {
	f Fetcher
	p Parser

	mu  sync.Mutex
	rnd *rand.Rand
}

// New 构造 Client（默认 goquery 解析器）。
func New(f Fetcher) *Client {
	return NewWithParser(f, goqueryParser{})
}

// NewWithParser 允许注入自定义 Parser（测试用 fake 解析器走该入口）。
func NewWithParser(f Fetcher, p Parser) *Client {
	return &Client{
		f:   f,
		p:   p,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Search 搜索视频，返回站点给出的顺序（代表相关度/时间，调用方不得重排）。
func (c *Client) Search(ctx context.Context, query string, page int) ([]domain.Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("搜索关键词不能为空")
	}
	return c.listing(ctx, searchURL(query, page))
}

// Latest 返回最新视频（站点首页顺序）。
func (c *Client) Latest(ctx context.Context, page int) ([]domain.Video, error) {
	return c.listing(ctx, latestURL(page))
}

// Popular 返回热门（最多播放）视频。
func (c *Client) Popular(ctx context.Context, page int) ([]domain.Video, error) {
	return c.listing(ctx, popularURL(page))
}

// TopRated 返回高评分视频。
func (c *Client) TopRated(ctx context.Context, page int) ([]domain.Video, error) {
	return c.listing(ctx, topRatedURL(page))
}

// ByCategory 返回指定分类的视频。
//
// 约束：分类名先对已知集合做校验，未知分类直接返回 *InvalidCategoryError，
// 不发出任何网络请求。分类页 404 时回退到搜索页（站点部分分类没有独立页面）。
func (c *Client) ByCategory(ctx context.Context, name string, page int) ([]domain.Video, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !domain.ValidCategory(name) {
		return nil, &InvalidCategoryError{Name: name}
	}

	vs, err := c.listing(ctx, categoryURL(name, page))
	if err != nil && isNotFound(err) {
		return c.listing(ctx, searchURL(name, page))
	}
	return vs, err
}

// Random 返回一条随机视频。
//
// 随机性是“页内随机”：随机挑一个列表源（最新/热门/高评分的随机页），
// 在该页条目中均匀取一条，再抓详情页补全字段。
// 不保证全站均匀分布（站点没有可靠的全站随机端点，这里不假装有）。
func (c *Client) Random(ctx context.Context) (domain.Video, error) {
	page := c.intn(10) + 1
	var u string
	switch c.intn(3) {
	case 0:
		u = latestURL(page)
	case 1:
		u = popularURL(page)
	default:
		u = topRatedURL(page)
	}

	vs, err := c.listing(ctx, u)
	if err != nil {
		return domain.Video{}, err
	}
	v := vs[c.intn(len(vs))]
	return c.Get(ctx, v.PageURL)
}

// Get 抓取并解析单条视频的详情页。idOrURL 允许三种形态：
// 完整 URL、数字 ID、slug。
func (c *Client) Get(ctx context.Context, idOrURL string) (domain.Video, error) {
	idOrURL = strings.TrimSpace(idOrURL)
	if idOrURL == "" {
		return domain.Video{}, fmt.Errorf("视频 ID 不能为空")
	}

	pageURL := idOrURL
	if !strings.HasPrefix(idOrURL, "http://") && !strings.HasPrefix(idOrURL, "https://") {
		pageURL = videoURL(idOrURL)
	}

	b, err := c.f.Fetch(ctx, pageURL)
	if err != nil {
		return domain.Video{}, err
	}
	return c.p.Detail(b, pageURL)
}

// Categories 返回站点的分类列表。
// 分类页解析为空时回退到内置已知分类集合（而不是报 EmptyResult：
// 该操作的语义是“能用的分类清单”，内置集合就是可用答案）。
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	b, err := c.f.Fetch(ctx, categoriesURL())
	if err != nil {
		return nil, err
	}
	cats, err := c.p.Categories(b, RootURL)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		cats = builtinCategories()
	}
	return cats, nil
}

func builtinCategories() []Category {
	slugs := domain.KnownCategories()
	out := make([]Category, 0, len(slugs))
	for _, s := range slugs {
		out = append(out, Category{Name: s, Slug: s, URL: categoryURL(s, 1)})
	}
	return out
}

func (c *Client) listing(ctx context.Context, url string) ([]domain.Video, error) {
	b, err := c.f.Fetch(ctx, url)
	if err != nil {
		// 网络失败原样上抛：调用方必须能区分“连不上”与“没结果”。
		return nil, err
	}
	vs, err := c.p.Listing(b, RootURL)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, &EmptyResultError{URL: url}
	}
	return vs, nil
}

func (c *Client) intn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Intn(n)
}

func isNotFound(err error) bool {
	var se *httpx.StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}
