package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/vmoranv/xgfp/internal/app/pipeline"
	"github.com/vmoranv/xgfp/internal/catalog"
	"github.com/vmoranv/xgfp/internal/config"
	"github.com/vmoranv/xgfp/internal/domain"
	"github.com/vmoranv/xgfp/internal/infra/cache"
	"github.com/vmoranv/xgfp/internal/infra/fsx"
	"github.com/vmoranv/xgfp/internal/infra/httpx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "search", "latest", "popular", "top", "category", "categories", "random", "video", "thumb", "cache":
		if code := runCmd(cmd, args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

func runCmd(cmd string, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage()
			return 0
		}
	}

	ca, err := parseCmdArgs(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return 2
	}

	// .env 是可选的：只为本地开发提供 XGFP_* 覆盖项。
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "xgfp",
	})

	fetcher, err := httpx.New(httpx.Options{
		ProxyURL: eff.ProxyURL,
		Timeout:  eff.Timeout,
		RetryMax: eff.RetryMax,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化 HTTP 客户端失败：%v\n", err)
		return 1
	}

	store, err := cache.New(eff.CacheDir, eff.MaxCacheFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化缩略图缓存失败：%v\n", err)
		return 1
	}

	level := eff.MosaicLevel
	if ca.LevelSet {
		level = ca.Level
	}
	p, err := pipeline.New(catalog.New(fetcher), fetcher, store, level, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败：%v\n", err)
		return 1
	}

	ctx := context.Background()
	switch cmd {
	case "search":
		return listCmd(func() ([]domain.Video, error) { return p.Search(ctx, ca.Arg, ca.Page) })
	case "latest":
		return listCmd(func() ([]domain.Video, error) { return p.Latest(ctx, ca.Page) })
	case "popular":
		return listCmd(func() ([]domain.Video, error) { return p.Popular(ctx, ca.Page) })
	case "top":
		return listCmd(func() ([]domain.Video, error) { return p.TopRated(ctx, ca.Page) })
	case "category":
		return listCmd(func() ([]domain.Video, error) { return p.ByCategory(ctx, ca.Arg, ca.Page) })
	case "categories":
		return categoriesCmd(ctx, p)
	case "random":
		return detailCmd(func() (domain.Video, error) { return p.Random(ctx) })
	case "video":
		return detailCmd(func() (domain.Video, error) { return p.Get(ctx, ca.Arg) })
	case "thumb":
		return thumbCmd(ctx, p, ca, level)
	case "cache":
		return cacheCmd(store, ca)
	}
	return 2
}

type cmdArgs struct {
	Arg    string // 位置参数：关键词 / 分类名 / 视频 ID 或 URL / cache 子动作
	Page   int
	Config string

	Level    int
	LevelSet bool

	Out string
}

// needsArg 标记必须带一个位置参数的命令。
var needsArg = map[string]string{
	"search":   "关键词",
	"category": "分类名",
	"video":    "视频 ID 或 URL",
	"thumb":    "视频 ID 或 URL",
	"cache":    "动作（info|clear）",
}

func parseCmdArgs(cmd string, args []string) (cmdArgs, error) {
	ca := cmdArgs{Page: 1}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--page":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--page 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return cmdArgs{}, fmt.Errorf("--page 必须是正整数，实际是 %q", args[i])
			}
			ca.Page = n
		case strings.HasPrefix(a, "--page="):
			v := strings.TrimPrefix(a, "--page=")
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return cmdArgs{}, fmt.Errorf("--page 必须是正整数，实际是 %q", v)
			}
			ca.Page = n
		case a == "--level":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--level 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 || n > 3 {
				return cmdArgs{}, fmt.Errorf("--level 只能是 0..3，实际是 %q", args[i])
			}
			ca.Level = n
			ca.LevelSet = true
		case strings.HasPrefix(a, "--level="):
			v := strings.TrimPrefix(a, "--level=")
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 3 {
				return cmdArgs{}, fmt.Errorf("--level 只能是 0..3，实际是 %q", v)
			}
			ca.Level = n
			ca.LevelSet = true
		case a == "--out":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--out 需要一个值")
			}
			i++
			ca.Out = args[i]
		case strings.HasPrefix(a, "--out="):
			ca.Out = strings.TrimPrefix(a, "--out=")
		case a == "--config":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ca.Config = args[i]
		case strings.HasPrefix(a, "--config="):
			ca.Config = strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-"):
			return cmdArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ca.Arg != "" {
				return cmdArgs{}, fmt.Errorf("重复的位置参数：%q 与 %q", ca.Arg, a)
			}
			ca.Arg = a
		}
	}

	if want, ok := needsArg[cmd]; ok && ca.Arg == "" {
		return cmdArgs{}, fmt.Errorf("%s 命令需要%s", cmd, want)
	}
	return ca, nil
}

func listCmd(fetch func() ([]domain.Video, error)) int {
	vs, err := fetch()
	if err != nil {
		return emitError(err)
	}
	if isTTY(os.Stdout) {
		for i, v := range vs {
			printVideoLine(i+1, v)
		}
		fmt.Fprintf(os.Stdout, "共 %d 条\n", len(vs))
		return 0
	}
	return emitJSON(videosJSON(vs))
}

func detailCmd(fetch func() (domain.Video, error)) int {
	v, err := fetch()
	if err != nil {
		return emitError(err)
	}
	if isTTY(os.Stdout) {
		printVideoDetail(v)
		return 0
	}
	return emitJSON(videoJSON(v))
}

func categoriesCmd(ctx context.Context, p *pipeline.Pipeline) int {
	cats, err := p.Categories(ctx)
	if err != nil {
		return emitError(err)
	}
	if isTTY(os.Stdout) {
		for _, c := range cats {
			fmt.Fprintf(os.Stdout, "📁 %-16s %s\n", c.Slug, c.URL)
		}
		fmt.Fprintf(os.Stdout, "共 %d 个分类\n", len(cats))
		return 0
	}
	return emitJSON(cats)
}

func thumbCmd(ctx context.Context, p *pipeline.Pipeline, ca cmdArgs, level int) int {
	v, err := p.Get(ctx, ca.Arg)
	if err != nil {
		return emitError(err)
	}
	b, err := p.Thumbnail(ctx, v)
	if err != nil {
		return emitError(err)
	}

	out := strings.TrimSpace(ca.Out)
	if out == "" {
		out = fmt.Sprintf("%s-l%d.jpg", v.ID, level)
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(out), filepath.Base(out), b); err != nil {
		return emitError(err)
	}
	fmt.Fprintf(os.Stdout, "🖼 已保存：%s（档位 %d，%d 字节）\n", out, level, len(b))
	return 0
}

func cacheCmd(store *cache.Store, ca cmdArgs) int {
	switch ca.Arg {
	case "info":
		fmt.Fprintf(os.Stdout, "缓存目录：%s\n条目数：%d\n", store.Dir(), store.Len())
		return 0
	case "clear":
		if err := store.Clear(); err != nil {
			return emitError(err)
		}
		fmt.Fprintln(os.Stdout, "🧹 缓存已清空")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "cache 动作只能是 info 或 clear，实际是 %q\n", ca.Arg)
		return 2
	}
}

// ---- 输出 ----

// videoOut 是对外 JSON 形态：未知的可选字段输出 null 而不是 0。
type videoOut struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   *int     `json:"duration_seconds"`
	Views      *int     `json:"views"`
	Rating     *float64 `json:"rating_percent"`
	Categories []string `json:"categories,omitempty"`
	PageURL    string   `json:"page_url"`
	ThumbURL   string   `json:"thumb_url"`
}

func videoJSON(v domain.Video) videoOut {
	o := videoOut{
		ID:         v.ID,
		Title:      v.Title,
		Categories: v.Categories,
		PageURL:    v.PageURL,
		ThumbURL:   v.ThumbURL,
	}
	if v.Duration.Known {
		d := v.Duration.Seconds
		o.Duration = &d
	}
	if v.Views.Known {
		n := v.Views.Count
		o.Views = &n
	}
	if v.Rating.Known {
		r := v.Rating.Percent
		o.Rating = &r
	}
	return o
}

func videosJSON(vs []domain.Video) []videoOut {
	out := make([]videoOut, 0, len(vs))
	for _, v := range vs {
		out = append(out, videoJSON(v))
	}
	return out
}

func printVideoLine(i int, v domain.Video) {
	fmt.Fprintf(os.Stdout, "🎬 %d. %s\n", i, v.Title)
	fmt.Fprintf(os.Stdout, "   ⏱ %s  👀 %s  ⭐ %s\n", fmtDuration(v.Duration), fmtViews(v.Views), fmtRating(v.Rating))
	fmt.Fprintf(os.Stdout, "   🔗 %s\n", v.PageURL)
}

func printVideoDetail(v domain.Video) {
	fmt.Fprintf(os.Stdout, "🎬 %s\n", v.Title)
	fmt.Fprintf(os.Stdout, "⏱ 时长：%s\n", fmtDuration(v.Duration))
	fmt.Fprintf(os.Stdout, "👀 播放：%s\n", fmtViews(v.Views))
	fmt.Fprintf(os.Stdout, "⭐ 评分：%s\n", fmtRating(v.Rating))
	if len(v.Categories) > 0 {
		fmt.Fprintf(os.Stdout, "📁 分类：%s\n", strings.Join(v.Categories, "、"))
	}
	fmt.Fprintf(os.Stdout, "🔗 %s\n", v.PageURL)
	if v.ThumbURL != "" {
		fmt.Fprintf(os.Stdout, "🖼 %s\n", v.ThumbURL)
	}
}

func fmtDuration(d domain.Duration) string {
	if !d.Known {
		return "未知"
	}
	h, rem := d.Seconds/3600, d.Seconds%3600
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, rem/60, rem%60)
	}
	return fmt.Sprintf("%d:%02d", rem/60, rem%60)
}

func fmtViews(v domain.Views) string {
	if !v.Known {
		return "未知"
	}
	return strconv.Itoa(v.Count)
}

func fmtRating(r domain.Rating) string {
	if !r.Known {
		return "未知"
	}
	return fmt.Sprintf("%g%%", r.Percent)
}

func emitJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "输出失败：%v\n", err)
		return 1
	}
	return 0
}

func emitError(err error) int {
	switch {
	case catalog.IsInvalidCategory(err):
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	case catalog.IsEmptyResult(err):
		fmt.Fprintf(os.Stderr, "🔍 %v\n", err)
	case httpx.IsNetwork(err):
		fmt.Fprintf(os.Stderr, "🌐 %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	return 1
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  xgfp <命令> [参数] [--page N] [--level 0..3] [--config 文件] [--out 文件]

命令：
  search <关键词>     搜索视频
  latest              最新视频
  popular             热门视频
  top                 高评分视频
  category <分类名>   按分类浏览
  categories          列出可用分类
  random              随机来一条
  video <ID|URL>      查看视频详情
  thumb <ID|URL>      下载打码后的缩略图（--out 指定保存路径）
  cache info|clear    查看/清空缩略图缓存

参数：
  --page N     列表页码（默认 1）
  --level N    本次使用的打码档位 0..3（默认读配置，内置默认 2）
  --config F   指定配置文件（默认 <cwd>/xgfp.json，可缺省）
  --out F      thumb 的保存路径（默认 <ID>-l<档位>.jpg）
  -h, --help   显示帮助

结果写 stdout（TTY 下为可读文本，否则为 JSON）；日志与错误写 stderr。
配置亦可用环境变量覆盖：XGFP_PROXY / XGFP_MOSAIC_LEVEL / XGFP_CACHE_DIR。
`)
}
