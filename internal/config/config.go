package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeNotFound 表示显式指定了配置文件但文件不存在。
	ErrCodeNotFound = "config_not_found"
)

const (
	// FileName 是默认配置文件名（在 cwd 下查找，不存在时全用默认值）。
	FileName = "xgfp.json"

	// DefaultMosaicLevel 是默认打码档位（0..3）。
	DefaultMosaicLevel = 2
	// DefaultMaxCacheFiles 是缩略图缓存的容量上限（文件数）。
	DefaultMaxCacheFiles = 100
	// DefaultTimeoutSeconds 是单次 HTTP 请求的超时秒数。
	DefaultTimeoutSeconds = 30
	// DefaultRetryMax 是失败后的最大重试次数（总尝试 = 1 + 重试）。
	DefaultRetryMax = 2
)

// 环境变量覆盖项（cmd 层先用 godotenv 加载 .env，这里只读进程环境）。
const (
	EnvProxy       = "XGFP_PROXY"
	EnvMosaicLevel = "XGFP_MOSAIC_LEVEL"
	EnvCacheDir    = "XGFP_CACHE_DIR"
)

// FileConfig 对应 xgfp.json 的解析结构。
// 指针字段用于区分“没写”与“显式写了 0”。
type FileConfig struct {
	Proxy          *ProxyConfig `json:"proxy"`
	MosaicLevel    *int         `json:"mosaic_level"`
	MaxCacheFiles  int          `json:"max_cache_files"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	RetryMax       *int         `json:"retry_max"`
	CacheDir       string       `json:"cache_dir"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，
// 不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ProxyURL string

	MosaicLevel   int
	MaxCacheFiles int

	Timeout  time.Duration
	RetryMax int

	CacheDir string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) explicitPath 非空：必须读取该文件，不存在即报错
// 2) explicitPath 为空：尝试读取 <cwd>/xgfp.json（可选，不存在则全用默认）
//
// 覆盖优先级（固定）：环境变量 > 配置文件 > 内置默认。
// 环境变量只覆盖 XGFP_PROXY / XGFP_MOSAIC_LEVEL / XGFP_CACHE_DIR 三项。
func LoadEffective(cwd string, explicitPath string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(explicitPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, explicitPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	return merge(cwdAbs, fc, cfgPath)
}

func merge(cwdAbs string, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// proxy：环境变量 > 配置文件。
	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if env := strings.TrimSpace(os.Getenv(EnvProxy)); env != "" {
		proxyURL = env
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%q", proxyURL)}
		}
	}

	// mosaic_level：环境变量 > 配置文件 > 默认 2。范围 [0,3]，越界即报错
	// （打码档位关系到输出内容，静默截断不可接受）。
	level := DefaultMosaicLevel
	if fc.MosaicLevel != nil {
		level = *fc.MosaicLevel
	}
	if env := strings.TrimSpace(os.Getenv(EnvMosaicLevel)); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("%s 无效：%q", EnvMosaicLevel, env)}
		}
		level = n
	}
	if level < 0 || level > 3 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("mosaic_level 必须在 [0,3]，实际 %d", level)}
	}

	// max_cache_files：默认 100；范围建议 [1, 10000]，超出截断。
	maxFiles := fc.MaxCacheFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxCacheFiles
	}
	if maxFiles < 1 {
		maxFiles = 1
	}
	if maxFiles > 10000 {
		maxFiles = 10000
	}

	// timeout_seconds：默认 30；范围建议 [1, 300]，超出截断。
	timeoutSec := fc.TimeoutSeconds
	if timeoutSec == 0 {
		timeoutSec = DefaultTimeoutSeconds
	}
	if timeoutSec < 1 {
		timeoutSec = 1
	}
	if timeoutSec > 300 {
		timeoutSec = 300
	}

	// retry_max：默认 2；范围建议 [0, 10]，超出截断。
	retryMax := DefaultRetryMax
	if fc.RetryMax != nil {
		retryMax = *fc.RetryMax
	}
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > 10 {
		retryMax = 10
	}

	// cache_dir：环境变量 > 配置文件 > <cwd>/cache。相对路径以 cwd 为基准。
	cacheDir := strings.TrimSpace(fc.CacheDir)
	if env := strings.TrimSpace(os.Getenv(EnvCacheDir)); env != "" {
		cacheDir = env
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(cwdAbs, "cache")
	} else {
		cacheDir = absCleanFrom(cwdAbs, cacheDir)
	}

	return EffectiveConfig{
		ProxyURL:      proxyURL,
		MosaicLevel:   level,
		MaxCacheFiles: maxFiles,
		Timeout:       time.Duration(timeoutSec) * time.Second,
		RetryMax:      retryMax,
		CacheDir:      cacheDir,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
