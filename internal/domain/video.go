package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// Video 是一次目录查询得到的单条视频记录。
//
// 约束：
// - 只读值：每次请求重新生成，构造后不再修改，也不进入缓存
// - ID 必须能从 PageURL 稳定推导（同一视频两次抓取得到相同 ID）
// - PageURL / ThumbURL 必须是绝对 URL（相对链接在解析阶段就地补全）
type Video struct {
	ID    string
	Title string

	Duration Duration
	Views    Views
	Rating   Rating

	Categories []string

	PageURL  string
	ThumbURL string
}

var (
	videoPathRE = regexp.MustCompile(`/video/(\d+)(?:/|$)`)
	slugTailRE  = regexp.MustCompile(`-(\d+)$`)
)

// VideoID 从详情页 URL 推导稳定 ID。
//
// 规则（按优先级）：
// 1) 路径形如 /video/12345/ → "12345"
// 2) 末段 slug 以 -12345 结尾（含 .html 后缀）→ "12345"
// 3) 否则取末段 slug 本身
//
// 推导必须是确定性的：相同 URL 永远得到相同 ID。
func VideoID(pageURL string) string {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return ""
	}

	path := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Path != "" {
		path = u.Path
	}

	if m := videoPathRE.FindStringSubmatch(path); m != nil {
		return m[1]
	}

	seg := strings.Trim(path, "/")
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	seg = strings.TrimSuffix(seg, ".html")
	if seg == "" {
		return ""
	}
	if m := slugTailRE.FindStringSubmatch(seg); m != nil {
		return m[1]
	}
	return seg
}
