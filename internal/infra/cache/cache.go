package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/vmoranv/xgfp/internal/infra/fsx"
)

// Store 是有界的缩略图文件缓存：key → 磁盘上的一个 JPEG 文件。
//
// 约束：
// - 任一修改操作完成后，条目数 ≤ maxFiles（严格 LRU 淘汰，一次 Put 只淘汰到刚好放下）
// - Get 命中刷新访问序号；未命中不做任何修改
// - 同一把互斥锁串行化全部内部簿记（含并发 Get 的刷新）；同 key 并发 Put 后写覆盖先写
// - 落盘走原子写（fsx）：被中途放弃的下载不会留下半个缓存条目
type Store struct {
	dir      string
	maxFiles int

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

type entry struct {
	size int64
	seq  uint64 // 最近一次访问的序号（越大越新）
}

// WriteError 表示缓存落盘失败（例如磁盘写满）。
// 读路径不受影响：上层应继续把内存中的结果返回给调用方。
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("缓存写入失败：key=%s：%v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsWrite 判断 err 是否为 *WriteError。
func IsWrite(err error) bool {
	var e *WriteError
	return errors.As(err, &e)
}

const fileExt = ".jpg"

var keyRE = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// New 构造 Store 并与磁盘对账：扫描 dir 下已有条目，按 mtime 重建访问序，
// 超出 maxFiles 的最旧条目先淘汰掉，再开始对外服务。
func New(dir string, maxFiles int) (*Store, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	if dir == "" || dir == "." {
		return nil, fmt.Errorf("缓存目录不能为空")
	}
	if maxFiles < 1 {
		return nil, fmt.Errorf("maxFiles 必须 ≥ 1，实际 %d", maxFiles)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		maxFiles: maxFiles,
		entries:  make(map[string]*entry),
	}
	if err := s.reconcile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reconcile() error {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	type onDisk struct {
		key     string
		size    int64
		modUnix int64
	}
	found := make([]onDisk, 0, len(des))
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		key := strings.TrimSuffix(name, fileExt)
		if key == name || !keyRE.MatchString(key) {
			// 不是缓存条目（临时文件、外来文件）：保持原样，不接管。
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		found = append(found, onDisk{key: key, size: fi.Size(), modUnix: fi.ModTime().UnixNano()})
	}

	// mtime 升序 → 越靠后越新；同 mtime 按 key 定序，保证对账结果确定。
	sort.Slice(found, func(i, j int) bool {
		if found[i].modUnix != found[j].modUnix {
			return found[i].modUnix < found[j].modUnix
		}
		return found[i].key < found[j].key
	})

	if drop := len(found) - s.maxFiles; drop > 0 {
		for _, f := range found[:drop] {
			_ = os.Remove(s.path(f.key))
		}
		found = found[drop:]
	}
	for _, f := range found {
		s.seq++
		s.entries[f.key] = &entry{size: f.size, seq: s.seq}
	}
	return nil
}

// Get 读取 key 对应的缓存字节。命中时刷新访问序号；未命中返回 ok=false 且无副作用。
func (s *Store) Get(key string) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			// 文件被外部删掉：索引条目一并丢弃，当作未命中。
			delete(s.entries, key)
			return nil, false, nil
		}
		return nil, false, err
	}

	s.seq++
	e.seq = s.seq
	return b, true, nil
}

// Put 写入（或覆盖）key 对应的缓存字节，然后按 LRU 淘汰到满足上限。
// 落盘失败返回 *WriteError，且不会留下对应的索引条目。
func (s *Store) Put(key string, b []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fsx.WriteFileAtomicReplace(s.dir, key+fileExt, b); err != nil {
		// 覆盖写失败后旧文件内容不再可信：索引与磁盘文件一并丢弃。
		delete(s.entries, key)
		_ = os.Remove(s.path(key))
		return &WriteError{Key: key, Err: err}
	}

	s.seq++
	s.entries[key] = &entry{size: int64(len(b)), seq: s.seq}

	// 只淘汰到刚好放下：一次 Put 绝不多删。
	for len(s.entries) > s.maxFiles {
		s.evictOldestLocked()
	}
	return nil
}

func (s *Store) evictOldestLocked() {
	var (
		victim string
		oldest uint64
		first  = true
	)
	// 条目数以 maxFiles 为上界（默认 100），线性扫描足够；不为此引入堆。
	for k, e := range s.entries {
		if first || e.seq < oldest {
			victim, oldest, first = k, e.seq, false
		}
	}
	if victim == "" {
		return
	}
	_ = os.Remove(s.path(victim))
	delete(s.entries, victim)
}

// Clear 清空全部缓存条目（索引与磁盘文件）。
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for k := range s.entries {
		if err := os.Remove(s.path(k)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		delete(s.entries, k)
	}
	return firstErr
}

// Len 返回当前条目数。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Dir 返回缓存目录（调用方只读使用）。
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func validKey(key string) error {
	if !keyRE.MatchString(key) {
		// 最小约束：避免路径穿越；key 由上层从 URL 哈希生成，这里不做更多“聪明”处理。
		return fmt.Errorf("非法缓存 key：%q", key)
	}
	return nil
}
