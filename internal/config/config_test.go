package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func TestLoadEffective_AllDefaultsWithoutFile(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, "")
	if err != nil {
		t.Fatalf("无配置文件应全用默认值：%v", err)
	}
	if eff.MosaicLevel != DefaultMosaicLevel {
		t.Errorf("期望档位 %d，实际 %d", DefaultMosaicLevel, eff.MosaicLevel)
	}
	if eff.MaxCacheFiles != DefaultMaxCacheFiles {
		t.Errorf("期望缓存上限 %d，实际 %d", DefaultMaxCacheFiles, eff.MaxCacheFiles)
	}
	if eff.Timeout != DefaultTimeoutSeconds*time.Second {
		t.Errorf("期望超时 %ds，实际 %v", DefaultTimeoutSeconds, eff.Timeout)
	}
	if eff.RetryMax != DefaultRetryMax {
		t.Errorf("期望重试 %d，实际 %d", DefaultRetryMax, eff.RetryMax)
	}
	if want := filepath.Join(cwd, "cache"); eff.CacheDir != want {
		t.Errorf("期望缓存目录 %q，实际 %q", want, eff.CacheDir)
	}
	if eff.ProxyURL != "" {
		t.Errorf("默认不应有代理：%q", eff.ProxyURL)
	}
}

func TestLoadEffective_FileOverridesDefaults(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"proxy": {"url": "http://127.0.0.1:7890"},
		"mosaic_level": 3,
		"max_cache_files": 50,
		"timeout_seconds": 10,
		"retry_max": 5,
		"cache_dir": "thumbs"
	}`))

	eff, err := LoadEffective(cwd, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Errorf("代理不一致：%q", eff.ProxyURL)
	}
	if eff.MosaicLevel != 3 {
		t.Errorf("期望档位 3，实际 %d", eff.MosaicLevel)
	}
	if eff.MaxCacheFiles != 50 {
		t.Errorf("期望缓存上限 50，实际 %d", eff.MaxCacheFiles)
	}
	if eff.Timeout != 10*time.Second {
		t.Errorf("期望超时 10s，实际 %v", eff.Timeout)
	}
	if eff.RetryMax != 5 {
		t.Errorf("期望重试 5，实际 %d", eff.RetryMax)
	}
	if want := filepath.Join(cwd, "thumbs"); eff.CacheDir != want {
		t.Errorf("相对 cache_dir 应以 cwd 为基准：%q ≠ %q", eff.CacheDir, want)
	}
}

func TestLoadEffective_ExplicitZeroKeptForPointerFields(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"mosaic_level": 0, "retry_max": 0}`))

	eff, err := LoadEffective(cwd, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MosaicLevel != 0 {
		t.Errorf("显式 mosaic_level=0 不应被默认值顶掉，实际 %d", eff.MosaicLevel)
	}
	if eff.RetryMax != 0 {
		t.Errorf("显式 retry_max=0 不应被默认值顶掉，实际 %d", eff.RetryMax)
	}
}

func TestLoadEffective_EnvOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"proxy": {"url": "http://127.0.0.1:7890"},
		"mosaic_level": 1,
		"cache_dir": "thumbs"
	}`))

	t.Setenv(EnvProxy, "socks5://127.0.0.1:1080")
	t.Setenv(EnvMosaicLevel, "3")
	t.Setenv(EnvCacheDir, "/var/cache/xgfp")

	eff, err := LoadEffective(cwd, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Errorf("环境变量应覆盖代理：%q", eff.ProxyURL)
	}
	if eff.MosaicLevel != 3 {
		t.Errorf("环境变量应覆盖档位：%d", eff.MosaicLevel)
	}
	if eff.CacheDir != filepath.Clean("/var/cache/xgfp") {
		t.Errorf("环境变量应覆盖缓存目录：%q", eff.CacheDir)
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"坏 JSON", `{`},
		{"档位越界", `{"mosaic_level": 4}`},
		{"档位为负", `{"mosaic_level": -1}`},
		{"坏代理", `{"proxy": {"url": "::not-a-url"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(tc.body))

			_, err := LoadEffective(cwd, "")
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_InvalidEnvLevel(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv(EnvMosaicLevel, "many")

	_, err := LoadEffective(cwd, "")
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_RangesClamped(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"max_cache_files": -5,
		"timeout_seconds": 9999,
		"retry_max": 99
	}`))

	eff, err := LoadEffective(cwd, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxCacheFiles != 1 {
		t.Errorf("负的缓存上限应截断到 1，实际 %d", eff.MaxCacheFiles)
	}
	if eff.Timeout != 300*time.Second {
		t.Errorf("超时应截断到 300s，实际 %v", eff.Timeout)
	}
	if eff.RetryMax != 10 {
		t.Errorf("重试应截断到 10，实际 %d", eff.RetryMax)
	}
}

func TestLoadEffective_ExplicitPathMustExist(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, "nope.json")
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}

	writeFile(t, filepath.Join(cwd, "alt.json"), []byte(`{"mosaic_level": 1}`))
	eff, err := LoadEffective(cwd, "alt.json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MosaicLevel != 1 {
		t.Errorf("显式配置文件未生效：%d", eff.MosaicLevel)
	}
}
