package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// RootURL 是目标站点根地址（单站点：多站点支持不在范围内）。
const RootURL = "https://www.xxxgfporn.com"

// 列表页 URL 形态沿用站点的路径式分页：/xxx/<page>/（第一页不带页号）。

func searchURL(query string, page int) string {
	u := RootURL + "/search/" + url.PathEscape(strings.TrimSpace(query)) + "/"
	if page > 1 {
		u += fmt.Sprintf("%d/", page)
	}
	return u
}

func latestURL(page int) string {
	if page <= 1 {
		return RootURL + "/"
	}
	return fmt.Sprintf("%s/latest/%d/", RootURL, page)
}

func popularURL(page int) string {
	u := RootURL + "/most-viewed/"
	if page > 1 {
		u += fmt.Sprintf("%d/", page)
	}
	return u
}

func topRatedURL(page int) string {
	u := RootURL + "/top-rated/"
	if page > 1 {
		u += fmt.Sprintf("%d/", page)
	}
	return u
}

func categoryURL(slug string, page int) string {
	u := RootURL + "/categories/" + url.PathEscape(slug) + "/"
	if page > 1 {
		u += fmt.Sprintf("%d/", page)
	}
	return u
}

func categoriesURL() string {
	return RootURL + "/categories/"
}

func videoURL(idOrSlug string) string {
	return RootURL + "/video/" + url.PathEscape(idOrSlug) + "/"
}
