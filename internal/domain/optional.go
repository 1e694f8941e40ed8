package domain

import (
	"strconv"
	"strings"
)

// 站点对时长/播放量/评分三个字段经常缺失。用显式的 Known 标记表达“未知”，
// 不使用 -1 之类的魔法值（0 秒 / 0 次播放是合法取值）。

// Duration 是视频时长（秒）。
type Duration struct {
	Seconds int
	Known   bool
}

// Views 是播放次数。
type Views struct {
	Count int
	Known bool
}

// Rating 是好评率，取值范围 [0,100]。
type Rating struct {
	Percent float64
	Known   bool
}

// ParseDuration 解析 "MM:SS" 或 "HH:MM:SS" 形态的时长文本。
// 解析失败返回 Known=false 的零值（不报错：列表页里该字段本来就时有时无）。
func ParseDuration(s string) Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return Duration{}
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Duration{}
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Duration{}
		}
		total = total*60 + n
	}
	return Duration{Seconds: total, Known: true}
}

// ParseViews 解析 "1,234" / "1234" 形态的播放量文本。
func ParseViews(s string) Views {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Views{}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Views{}
	}
	return Views{Count: n, Known: true}
}

// ParseRating 解析 "93%" / "93.5" 形态的好评率文本，越界视为未知。
func ParseRating(s string) Rating {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return Rating{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 100 {
		return Rating{}
	}
	return Rating{Percent: f, Known: true}
}
