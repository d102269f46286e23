package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
// 所有对象平铺在一个目录里，不重建目录树
type Adapter struct {
	rootPath string // 比如: ./extracted
}

// NewAdapter 创建一个新的磁盘存储适配器
// 建不了根目录是致命错误，整个运行直接终止
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", core.ErrFatalSetup, err)
	}
	return &Adapter{rootPath: root}, nil
}

func (s *Adapter) Root() string { return s.rootPath }

// layout 返回名字对应的物理路径
// 名字必须已经是单层文件名 (见 storage.SafeName)
func (s *Adapter) layout(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidName, name)
	}
	return filepath.Join(s.rootPath, name), nil
}

func (s *Adapter) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	target, err := s.layout(name)
	if err != nil {
		return nil, err
	}
	// 同名覆盖：冲突处理不在范围内
	return os.Create(target)
}

func (s *Adapter) Mkdir(ctx context.Context, name string) error {
	target, err := s.layout(name)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, 0755)
}

func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	target, err := s.layout(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, name string) (bool, error) {
	target, err := s.layout(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
