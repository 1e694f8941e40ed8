package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vmoranv/xgfp/internal/domain"
)

// goqueryParser 是默认 Parser：把“站点模板变化”限制在本文件内部，
// Client 只依赖稳定的 Video 结构。
//
// 解析分两层策略（与站点多套模板对应）：
// 1) 按常见容器 class 扫描列表项（容器自带标题/时长/播放量）
// 2) 兜底：直接扫视频链接，从最近的父节点就近找缩略图与标题
type goqueryParser struct{}

var (
	containerClassRE = regexp.MustCompile(`(?i)video[_-]?item|vid-item|video-block|thumb|card|\bitem\b`)
	titleClassRE     = regexp.MustCompile(`(?i)title|name`)
	durationClassRE  = regexp.MustCompile(`(?i)duration|length`)
	viewsClassRE     = regexp.MustCompile(`(?i)views|view-count`)
	ratingClassRE    = regexp.MustCompile(`(?i)rating|percent`)
	videoHrefRE      = regexp.MustCompile(`/(?:video|videos|watch|v)/[^/?#]`)
	categoryHrefRE   = regexp.MustCompile(`/categor(?:y|ies)/([^/?#]+)`)
)

// 站点导航/分类链接的 slug，绝不能被当成视频 ID。
var excludedSlugs = map[string]struct{}{}

func init() {
	for _, s := range domain.KnownCategories() {
		excludedSlugs[s] = struct{}{}
	}
	for _, s := range []string{
		"categories", "category", "tags", "tag", "channels", "pornstars",
		"popular", "latest", "top-rated", "most-viewed", "random", "search",
		"login", "register", "contact", "privacy", "terms", "dmca", "2257",
		"about", "girlfriend", "homemade", "pov", "interracial", "redhead",
		"ebony", "latina",
	} {
		excludedSlugs[s] = struct{}{}
	}
}

func excluded(id string) bool {
	_, ok := excludedSlugs[strings.ToLower(id)]
	return ok
}

func (goqueryParser) Listing(page []byte, baseURL string) ([]domain.Video, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []domain.Video

	// 策略一：容器扫描。只认“恰好包含一个视频链接”的容器，
	// 这样外层网格/包装容器不会把整页折叠成一条记录。
	doc.Find("div, article, li").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if !containerClassRE.MatchString(class) {
			return
		}
		v, ok := videoFromContainer(sel, baseURL)
		if !ok {
			return
		}
		if _, dup := seen[v.ID]; dup {
			return
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	})
	if len(out) > 0 {
		return out, nil
	}

	// 策略二：链接兜底。
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !isVideoHref(href) {
			return
		}
		pageURL := resolveURL(baseURL, href)
		id := domain.VideoID(pageURL)
		if id == "" || excluded(id) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		v := domain.Video{ID: id, PageURL: pageURL}
		if p := a.ParentsFiltered("div, article, li, section").First(); p.Length() > 0 {
			fillFromContainer(&v, p, baseURL)
		}
		if v.Title == "" {
			v.Title = strings.TrimSpace(a.AttrOr("title", ""))
		}
		if v.Title == "" {
			v.Title = normSpace(a.Text())
		}
		out = append(out, v)
	})
	return out, nil
}

func videoFromContainer(sel *goquery.Selection, baseURL string) (domain.Video, bool) {
	links := sel.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return isVideoHref(href)
	})
	if links.Length() != 1 {
		return domain.Video{}, false
	}

	href, _ := links.First().Attr("href")
	pageURL := resolveURL(baseURL, href)
	id := domain.VideoID(pageURL)
	if id == "" || excluded(id) {
		return domain.Video{}, false
	}

	v := domain.Video{ID: id, PageURL: pageURL}
	fillFromContainer(&v, sel, baseURL)
	if v.Title == "" {
		v.Title = strings.TrimSpace(links.First().AttrOr("title", ""))
	}
	if v.Title == "" {
		v.Title = normSpace(links.First().Text())
	}
	return v, true
}

func fillFromContainer(v *domain.Video, sel *goquery.Selection, baseURL string) {
	if img := sel.Find("img").First(); img.Length() > 0 {
		src := firstAttr(img, "data-src", "src", "data-lazy-src")
		if src != "" && !strings.HasPrefix(src, "data:") {
			v.ThumbURL = resolveURL(baseURL, src)
		}
	}
	if v.Title == "" {
		v.Title = findClassText(sel, titleClassRE)
	}
	if !v.Duration.Known {
		v.Duration = domain.ParseDuration(findClassText(sel, durationClassRE))
	}
	if !v.Views.Known {
		v.Views = domain.ParseViews(findClassText(sel, viewsClassRE))
	}
	if !v.Rating.Known {
		v.Rating = domain.ParseRating(findClassText(sel, ratingClassRE))
	}
}

func (goqueryParser) Detail(page []byte, pageURL string) (domain.Video, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.Video{}, err
	}

	v := domain.Video{
		ID:      domain.VideoID(pageURL),
		PageURL: strings.TrimSpace(pageURL),
	}

	// JSON-LD VideoObject 优先：结构化数据比 CSS 选择器扛得住模板改版。
	if ld, ok := extractJSONLD(doc); ok {
		v.Title = normSpace(ld.Name)
		if t := ld.thumbnail(); t != "" {
			v.ThumbURL = resolveURL(pageURL, t)
		}
		v.Duration = parseISODuration(ld.Duration)
	}

	if v.Title == "" {
		doc.Find("h1").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			class, _ := h.Attr("class")
			if !titleClassRE.MatchString(class) {
				return true
			}
			v.Title = normSpace(h.Text())
			return false
		})
	}
	if v.Title == "" {
		v.Title = normSpace(doc.Find("h1").First().Text())
	}
	if v.Title == "" {
		v.Title = cleanPageTitle(doc.Find("title").First().Text())
	}

	if !v.Duration.Known {
		v.Duration = domain.ParseDuration(findClassText(doc.Selection, durationClassRE))
	}
	v.Views = domain.ParseViews(findClassText(doc.Selection, viewsClassRE))
	v.Rating = domain.ParseRating(findClassText(doc.Selection, ratingClassRE))

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := categoryHrefRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		slug := strings.ToLower(m[1])
		if _, dup := seen[slug]; dup {
			return
		}
		seen[slug] = struct{}{}
		v.Categories = append(v.Categories, slug)
	})

	if v.ThumbURL == "" {
		if og, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
			v.ThumbURL = resolveURL(pageURL, og)
		}
	}
	if v.ThumbURL == "" {
		if poster, ok := doc.Find("video[poster]").First().Attr("poster"); ok {
			v.ThumbURL = resolveURL(pageURL, poster)
		}
	}
	if v.ThumbURL == "" {
		doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			class, _ := img.Attr("class")
			if !strings.Contains(strings.ToLower(class), "thumb") {
				return true
			}
			if src := firstAttr(img, "data-src", "src"); src != "" {
				v.ThumbURL = resolveURL(pageURL, src)
				return false
			}
			return true
		})
	}

	// 既没有标题也没有缩略图：疑似拿到了拦截页/错误页，而不是详情页。
	if v.Title == "" && v.ThumbURL == "" {
		return domain.Video{}, fmt.Errorf("详情页解析失败（疑似返回了非详情页内容）：%s", pageURL)
	}
	return v, nil
}

func (goqueryParser) Categories(page []byte, baseURL string) ([]Category, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []Category
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := categoryHrefRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		slug := strings.ToLower(m[1])
		name := normSpace(a.Text())
		if name == "" {
			return
		}
		if _, dup := seen[slug]; dup {
			return
		}
		seen[slug] = struct{}{}
		out = append(out, Category{
			Name: name,
			Slug: slug,
			URL:  resolveURL(baseURL, href),
		})
	})
	return out, nil
}

// ---- JSON-LD ----

type jsonLD struct {
	Type     string          `json:"@type"`
	Name     string          `json:"name"`
	Thumb    json.RawMessage `json:"thumbnailUrl"`
	Duration string          `json:"duration"`
}

// thumbnail 取 thumbnailUrl 的首个字符串（字段允许是字符串或字符串数组）。
func (ld jsonLD) thumbnail() string {
	if len(ld.Thumb) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(ld.Thumb, &s) == nil {
		return strings.TrimSpace(s)
	}
	var arr []string
	if json.Unmarshal(ld.Thumb, &arr) == nil && len(arr) > 0 {
		return strings.TrimSpace(arr[0])
	}
	return ""
}

func extractJSONLD(doc *goquery.Document) (jsonLD, bool) {
	var (
		found jsonLD
		ok    bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var ld jsonLD
		if err := json.Unmarshal([]byte(s.Text()), &ld); err != nil {
			return true
		}
		if strings.EqualFold(ld.Type, "VideoObject") {
			found, ok = ld, true
			return false
		}
		return true
	})
	return found, ok
}

var isoDurationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration 解析 JSON-LD 的 ISO 8601 时长（如 "PT12M34S"）。
func parseISODuration(s string) domain.Duration {
	m := isoDurationRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return domain.Duration{}
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return domain.Duration{}
		}
		total += n * mult
	}
	return domain.Duration{Seconds: total, Known: true}
}

// ---- 小工具 ----

func isVideoHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || href == "/" {
		return false
	}
	lower := strings.ToLower(href)
	for _, x := range []string{
		"/category", "/categories/", "/tag", "/tags/", "/search",
		"/page/", "javascript:", "/login", "/register",
		"/pornstars/", "/channels/",
	} {
		if strings.Contains(lower, x) {
			return false
		}
	}
	return videoHrefRE.MatchString(href)
}

// findClassText 在 sel 子树内找首个 class 匹配 re 的元素并返回其文本。
func findClassText(sel *goquery.Selection, re *regexp.Regexp) string {
	out := ""
	sel.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		if !ok || !re.MatchString(class) {
			return true
		}
		if t := normSpace(s.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := sel.Attr(n); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var siteSuffixRE = regexp.MustCompile(`(?i)\s*[-|–—]\s*(Free\s+)?(Porn\s+)?(Video\s+)?(at\s+)?XXXGFPORN.*$`)

// cleanPageTitle 去掉 <title> 尾部的站点名后缀。
func cleanPageTitle(t string) string {
	return strings.TrimSpace(siteSuffixRE.ReplaceAllString(normSpace(t), ""))
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
