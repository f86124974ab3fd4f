package disk

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// store is a flat directory of immutable files written via temp+rename.
type store struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64
	bytes          atomic.Int64
	pruneMu        sync.Mutex
}

func newStore(dir string, opts []Option) (*store, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if cfg.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
		return nil, err
	}
	s := &store{
		dir:            dir,
		shardPrefixLen: cfg.shardPrefixLen,
		dirPerm:        cfg.dirPerm,
		maxBytes:       cfg.maxBytes,
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	s.bytes.Store(size)
	return s, nil
}

// shard maps a hex name to its relative path.
func (s *store) shard(name string) string {
	if s.shardPrefixLen <= 0 {
		return name
	}
	prefixLen := min(s.shardPrefixLen, len(name))
	return filepath.Join(name[:prefixLen], name)
}

func (s *store) read(path string) ([]byte, bool) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, false
	}
	defer root.Close()

	data, err := root.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *store) modTime(path string) (time.Time, bool) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return time.Time{}, false
	}
	defer root.Close()

	info, err := root.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (s *store) write(path, pattern string, data []byte) error {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("open cache root: %w", err)
	}
	defer root.Close()

	if _, err := root.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat cache entry: %w", err)
	}

	written := int64(len(data))
	if ok, err := s.ensureCapacity(written); err != nil {
		return err
	} else if !ok {
		return nil // Cache full, skip silently
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := root.MkdirAll(dir, s.dirPerm); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	tmp, tmpPath, err := createTemp(root, dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = root.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = root.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := root.Rename(tmpPath, path); err != nil {
		if _, statErr := root.Stat(path); statErr == nil {
			_ = root.Remove(tmpPath)
			return nil
		}
		_ = root.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}

	s.bytes.Add(written)
	return nil
}

func (s *store) remove(path string) error {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return err
	}
	defer root.Close()

	info, err := root.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := root.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	s.bytes.Add(-info.Size())
	return nil
}

func (s *store) prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	freed, remaining, err := pruneDir(s.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	s.bytes.Store(remaining)
	return freed, nil
}

func (s *store) ensureCapacity(need int64) (bool, error) {
	if s.maxBytes <= 0 {
		return true, nil
	}
	if need > s.maxBytes {
		return false, nil
	}
	if s.bytes.Load()+need <= s.maxBytes {
		return true, nil
	}
	if _, err := s.prune(s.maxBytes - need); err != nil {
		return false, err
	}
	return s.bytes.Load()+need <= s.maxBytes, nil
}

func createTemp(root *os.Root, dir, pattern string) (*os.File, string, error) {
	if !strings.Contains(pattern, "*") {
		pattern += "*"
	}
	if dir == "" {
		dir = "."
	}

	for tries := 0; tries < 10000; tries++ {
		var randBytes [8]byte
		if _, err := rand.Read(randBytes[:]); err != nil {
			return nil, "", err
		}
		name := strings.Replace(pattern, "*", hex.EncodeToString(randBytes[:]), 1)
		path := filepath.Join(dir, name)
		f, err := root.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}

	return nil, "", errors.New("failed to create temp file")
}
