// Package store looks up the path→content map of one presentation version.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/flanksource/commons/logger"
)

var log = logger.GetLogger("store")

// ErrVersionNotFound 表示版本不存在。
var ErrVersionNotFound = errors.New("版本不存在")

// Source returns the content map of a presentation version. Versions are immutable.
type Source interface {
	Files(ctx context.Context, version int) (map[string]string, error)
}

// Dir 从目录读取版本内容，版本 N 位于 <Root>/v<N>/，路径以 / 分隔。
type Dir struct {
	Root string
}

// NewDir creates a directory source.
func NewDir(root string) *Dir { return &Dir{Root: root} }

// VersionDir 返回版本目录。
func (d *Dir) VersionDir(version int) string {
	return filepath.Join(d.Root, fmt.Sprintf("v%d", version))
}

// Files 读取版本目录下的全部常规文件。
func (d *Dir) Files(ctx context.Context, version int) (map[string]string, error) {
	root := d.VersionDir(version)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: v%d", ErrVersionNotFound, version)
	}
	files, err := ReadTree(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("读取版本 v%d 失败: %w", version, err)
	}
	return files, nil
}

// ReadTree reads every regular file under root into a content map keyed by
// slash-separated relative path.
func ReadTree(ctx context.Context, root string) (map[string]string, error) {
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", rel, err)
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Cached 是按版本号缓存的读穿透包装。版本内容不可变，因此缓存项永不过期。
type Cached struct {
	src Source

	mu      sync.Mutex
	entries map[int]map[string]string
}

// NewCached wraps src.
func NewCached(src Source) *Cached {
	return &Cached{src: src, entries: map[int]map[string]string{}}
}

// Files 返回缓存内容的副本；未命中时读取底层来源。错误不会被缓存。
func (c *Cached) Files(ctx context.Context, version int) (map[string]string, error) {
	c.mu.Lock()
	files, ok := c.entries[version]
	c.mu.Unlock()
	if ok {
		return maps.Clone(files), nil
	}

	files, err := c.src.Files(ctx, version)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[version] = maps.Clone(files)
	c.mu.Unlock()
	log.Debugf("缓存版本 v%d（%d 个文件）", version, len(files))
	return files, nil
}

// Forget 移除缓存项。
func (c *Cached) Forget(version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, version)
}
