package catalog

import (
	"testing"

	"github.com/vmoranv/xgfp/internal/domain"
)

const listingFixture = `<html><body>
<div class="video-list">
  <div class="video-item">
    <a href="/video/101/" title="First Clip"><img data-src="/thumbs/101.jpg"></a>
    <span class="title">First Clip</span>
    <span class="duration">12:34</span>
    <span class="views">1,234</span>
    <span class="rating">93%</span>
  </div>
  <div class="video-item">
    <a href="/video/sweet-girl-202.html"><img src="https://cdn.example.com/202.jpg"></a>
    <span class="title">Sweet Girl</span>
  </div>
  <div class="video-item">
    <a href="/video/101/"><img src="/thumbs/dup.jpg"></a>
    <span class="title">Duplicate Of First</span>
  </div>
  <a href="/categories/teen/">teen</a>
</div>
</body></html>`

func TestListing_ContainerStrategy(t *testing.T) {
	vs, err := goqueryParser{}.Listing([]byte(listingFixture), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("期望 2 条记录（重复 ID 去重），实际 %d：%+v", len(vs), vs)
	}

	v := vs[0]
	if v.ID != "101" {
		t.Fatalf("ID 不一致：%q", v.ID)
	}
	if v.Title != "First Clip" {
		t.Fatalf("标题不一致：%q", v.Title)
	}
	if v.PageURL != RootURL+"/video/101/" {
		t.Fatalf("PageURL 未补全为绝对地址：%q", v.PageURL)
	}
	if v.ThumbURL != RootURL+"/thumbs/101.jpg" {
		t.Fatalf("缩略图未取 data-src 或未补全：%q", v.ThumbURL)
	}
	if !v.Duration.Known || v.Duration.Seconds != 754 {
		t.Fatalf("时长解析错误：%+v", v.Duration)
	}
	if !v.Views.Known || v.Views.Count != 1234 {
		t.Fatalf("播放量解析错误：%+v", v.Views)
	}
	if !v.Rating.Known || v.Rating.Percent != 93 {
		t.Fatalf("评分解析错误：%+v", v.Rating)
	}

	if vs[1].ID != "202" {
		t.Fatalf("slug 尾号应作为 ID：%q", vs[1].ID)
	}
	if vs[1].ThumbURL != "https://cdn.example.com/202.jpg" {
		t.Fatalf("绝对缩略图地址不应被改写：%q", vs[1].ThumbURL)
	}
	if vs[1].Duration.Known {
		t.Fatalf("缺失的时长应保持未知，实际 %+v", vs[1].Duration)
	}
}

const linkOnlyFixture = `<html><body>
<div class="grid">
  <a href="/video/303/" title="Third Video">watch</a>
  <a href="/categories/teen/">teen</a>
  <a href="/video/303/">再来一次</a>
  <a href="javascript:void(0)">nav</a>
</div>
</body></html>`

func TestListing_LinkFallbackStrategy(t *testing.T) {
	vs, err := goqueryParser{}.Listing([]byte(linkOnlyFixture), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(vs) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d：%+v", len(vs), vs)
	}
	if vs[0].ID != "303" || vs[0].Title != "Third Video" {
		t.Fatalf("记录不一致：%+v", vs[0])
	}
}

func TestListing_OrderPreserved(t *testing.T) {
	vs, err := goqueryParser{}.Listing([]byte(listingFixture), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if vs[0].ID != "101" || vs[1].ID != "202" {
		t.Fatalf("必须保持页面出现顺序：%+v", vs)
	}
}

func TestListing_EmptyPage(t *testing.T) {
	vs, err := goqueryParser{}.Listing([]byte("<html><body><p>nothing</p></body></html>"), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("空页面应得到 0 条记录，实际 %d", len(vs))
	}
}

const detailFixture = `<html><head>
<title>Some Video - Free Porn Video at XXXGFPORN.com</title>
<script type="application/ld+json">{"@type":"VideoObject","name":"Some Video","thumbnailUrl":"/t/v1.jpg","duration":"PT12M34S"}</script>
<meta property="og:image" content="/og.jpg">
</head><body>
<h1 class="video-title">Some Video</h1>
<span class="views">4,321</span>
<span class="rating">88%</span>
<a href="/categories/teen/">Teen</a>
<a href="/categories/amateur/">Amateur</a>
<a href="/categories/teen/">Teen again</a>
</body></html>`

func TestDetail_JSONLDPreferred(t *testing.T) {
	pageURL := RootURL + "/video/555/"
	v, err := goqueryParser{}.Detail([]byte(detailFixture), pageURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if v.ID != "555" {
		t.Fatalf("ID 应从 pageURL 推导：%q", v.ID)
	}
	if v.Title != "Some Video" {
		t.Fatalf("标题不一致：%q", v.Title)
	}
	if v.ThumbURL != RootURL+"/t/v1.jpg" {
		t.Fatalf("缩略图应取 JSON-LD 并补全：%q", v.ThumbURL)
	}
	if !v.Duration.Known || v.Duration.Seconds != 754 {
		t.Fatalf("ISO 时长解析错误：%+v", v.Duration)
	}
	if !v.Views.Known || v.Views.Count != 4321 {
		t.Fatalf("播放量解析错误：%+v", v.Views)
	}
	if !v.Rating.Known || v.Rating.Percent != 88 {
		t.Fatalf("评分解析错误：%+v", v.Rating)
	}
	if len(v.Categories) != 2 || v.Categories[0] != "teen" || v.Categories[1] != "amateur" {
		t.Fatalf("分类解析错误（应去重保序）：%v", v.Categories)
	}
}

const detailNoLDFixture = `<html><head>
<title>Plain Title - at XXXGFPORN</title>
<meta property="og:image" content="/og.jpg">
</head><body>
<h1>Plain Title</h1>
<span class="duration">1:02:03</span>
</body></html>`

func TestDetail_SelectorFallback(t *testing.T) {
	v, err := goqueryParser{}.Detail([]byte(detailNoLDFixture), RootURL+"/video/777/")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if v.Title != "Plain Title" {
		t.Fatalf("标题不一致：%q", v.Title)
	}
	if v.ThumbURL != RootURL+"/og.jpg" {
		t.Fatalf("缩略图应回退到 og:image：%q", v.ThumbURL)
	}
	if !v.Duration.Known || v.Duration.Seconds != 3723 {
		t.Fatalf("时长解析错误：%+v", v.Duration)
	}
}

func TestDetail_NotADetailPage(t *testing.T) {
	_, err := goqueryParser{}.Detail([]byte("<html><body>blocked</body></html>"), RootURL+"/video/1/")
	if err == nil {
		t.Fatalf("拦截页应报错")
	}
}

const categoriesFixture = `<html><body>
<a href="/categories/teen/">Teen</a>
<a href="/categories/milf/">MILF</a>
<a href="/categories/teen/">Teen dup</a>
<a href="/video/1/">not a category</a>
</body></html>`

func TestCategories_Parse(t *testing.T) {
	cats, err := goqueryParser{}.Categories([]byte(categoriesFixture), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("期望 2 个分类，实际 %d：%+v", len(cats), cats)
	}
	if cats[0].Slug != "teen" || cats[0].Name != "Teen" {
		t.Fatalf("分类不一致：%+v", cats[0])
	}
	if cats[1].URL != RootURL+"/categories/milf/" {
		t.Fatalf("分类 URL 未补全：%q", cats[1].URL)
	}
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in      string
		seconds int
		known   bool
	}{
		{"PT12M34S", 754, true},
		{"PT1H2M3S", 3723, true},
		{"PT45S", 45, true},
		{"PT", 0, false},
		{"12:34", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got := parseISODuration(c.in)
		if got.Known != c.known || got.Seconds != c.seconds {
			t.Errorf("parseISODuration(%q)=%+v，期望 seconds=%d known=%v", c.in, got, c.seconds, c.known)
		}
	}
}

func TestVideoIDConsistencyWithListing(t *testing.T) {
	vs, err := goqueryParser{}.Listing([]byte(listingFixture), RootURL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	for _, v := range vs {
		if got := domain.VideoID(v.PageURL); got != v.ID {
			t.Errorf("ID 必须可从 PageURL 复推：%q → %q ≠ %q", v.PageURL, got, v.ID)
		}
	}
}
