package domain

// 站点的已知分类 slug（固定集合）。
// byCategory 在发请求之前用它做校验：未知分类直接拒绝，不浪费网络调用。
var knownCategories = []string{
	"amateur", "anal", "asian", "bbw", "big-tits", "blonde",
	"blowjob", "brunette", "creampie", "cumshot", "hardcore",
	"lesbian", "mature", "milf", "teen", "threesome",
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(knownCategories))
	for _, c := range knownCategories {
		m[c] = struct{}{}
	}
	return m
}()

// KnownCategories 返回已知分类 slug 列表（副本，调用方可自由修改）。
func KnownCategories() []string {
	return append([]string(nil), knownCategories...)
}

// ValidCategory 判断 slug 是否属于已知分类集合。
func ValidCategory(slug string) bool {
	_, ok := categorySet[slug]
	return ok
}
