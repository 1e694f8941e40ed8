// Package pipeline 把目录查询、缩略图抓取、打码与缓存串成对外的单一门面。
// cmd 层只跟 Pipeline 打交道，不直接触碰 catalog/httpx/imgx/cache。
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vmoranv/xgfp/internal/catalog"
	"github.com/vmoranv/xgfp/internal/domain"
	"github.com/vmoranv/xgfp/internal/infra/cache"
	"github.com/vmoranv/xgfp/internal/infra/imgx"
)

// Catalog 是取数端的最小接口（生产实现是 *catalog.Client）。
type Catalog interface {
	Search(ctx context.Context, query string, page int) ([]domain.Video, error)
	Latest(ctx context.Context, page int) ([]domain.Video, error)
	Popular(ctx context.Context, page int) ([]domain.Video, error)
	TopRated(ctx context.Context, page int) ([]domain.Video, error)
	ByCategory(ctx context.Context, name string, page int) ([]domain.Video, error)
	Random(ctx context.Context) (domain.Video, error)
	Get(ctx context.Context, idOrURL string) (domain.Video, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
}

// Pipeline 汇集全部对外操作。
//
// 约束：
// - 缩略图的缓存键按“图 URL + 打码档位”计算：不同档位互不污染
// - 打码失败（坏图）不产生缓存条目，下次调用重新抓取
// - 缓存写失败降级为日志告警：本次结果照常返回，只是下次要重新抓
type Pipeline struct {
	cat    Catalog
	images catalog.Fetcher
	store  *cache.Store
	level  int
	logger *log.Logger
}

// New 构造 Pipeline。level 是默认打码档位（0..3），store 不可为 nil。
func New(cat Catalog, images catalog.Fetcher, store *cache.Store, level int, logger *log.Logger) (*Pipeline, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog 不可为空")
	}
	if images == nil {
		return nil, fmt.Errorf("图片抓取端不可为空")
	}
	if store == nil {
		return nil, fmt.Errorf("缩略图缓存不可为空")
	}
	if level < 0 || level > 3 {
		return nil, fmt.Errorf("打码档位必须在 [0,3]，实际 %d", level)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{cat: cat, images: images, store: store, level: level, logger: logger}, nil
}

// Level 返回当前默认打码档位。
func (p *Pipeline) Level() int { return p.level }

func (p *Pipeline) Search(ctx context.Context, query string, page int) ([]domain.Video, error) {
	return p.cat.Search(ctx, query, page)
}

func (p *Pipeline) Latest(ctx context.Context, page int) ([]domain.Video, error) {
	return p.cat.Latest(ctx, page)
}

func (p *Pipeline) Popular(ctx context.Context, page int) ([]domain.Video, error) {
	return p.cat.Popular(ctx, page)
}

func (p *Pipeline) TopRated(ctx context.Context, page int) ([]domain.Video, error) {
	return p.cat.TopRated(ctx, page)
}

func (p *Pipeline) ByCategory(ctx context.Context, name string, page int) ([]domain.Video, error) {
	return p.cat.ByCategory(ctx, name, page)
}

func (p *Pipeline) Random(ctx context.Context) (domain.Video, error) {
	return p.cat.Random(ctx)
}

func (p *Pipeline) Get(ctx context.Context, idOrURL string) (domain.Video, error) {
	return p.cat.Get(ctx, idOrURL)
}

func (p *Pipeline) Categories(ctx context.Context) ([]catalog.Category, error) {
	return p.cat.Categories(ctx)
}

// Thumbnail 返回视频缩略图的打码后 JPEG 字节（默认档位）。
func (p *Pipeline) Thumbnail(ctx context.Context, v domain.Video) ([]byte, error) {
	return p.ThumbnailAt(ctx, v, p.level)
}

// ThumbnailAt 同 Thumbnail，但允许覆盖打码档位。
//
// 顺序：缓存命中直接返回；未命中则抓原图 → 打码 → 写缓存 → 返回。
func (p *Pipeline) ThumbnailAt(ctx context.Context, v domain.Video, level int) ([]byte, error) {
	if v.ThumbURL == "" {
		return nil, fmt.Errorf("视频 %q 没有缩略图地址", v.ID)
	}
	if level < 0 || level > 3 {
		return nil, fmt.Errorf("打码档位必须在 [0,3]，实际 %d", level)
	}

	key := thumbKey(v.ThumbURL, level)
	if b, ok, err := p.store.Get(key); err == nil && ok {
		return b, nil
	} else if err != nil {
		p.logger.Warn("读缩略图缓存失败", "key", key, "err", err)
	}

	raw, err := p.images.Fetch(ctx, v.ThumbURL)
	if err != nil {
		return nil, err
	}
	out, err := imgx.Redact(raw, level)
	if err != nil {
		// 坏图不进缓存：留着下次重抓（源站偶尔返回半截图）。
		return nil, err
	}

	if err := p.store.Put(key, out); err != nil {
		p.logger.Warn("写缩略图缓存失败", "key", key, "err", err)
	}
	return out, nil
}

// thumbKey 由图 URL 与档位推导缓存键（确定性：同 URL 同档位永远同键）。
func thumbKey(thumbURL string, level int) string {
	sum := sha1.Sum([]byte(thumbURL))
	return hex.EncodeToString(sum[:]) + fmt.Sprintf("-l%d", level)
}
