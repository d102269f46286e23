package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

// Store 是提取结果的输出端
// 按名字寻址 (不是内容寻址)，同名对象后写覆盖先写，这是已知的缺口
// Implementations can be local disk, S3, or a cache decorator.
type Store interface {
	// Create 创建 (或截断) 一个输出文件
	// 调用方负责 Close；Close 返回错误说明数据没有完整落盘
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Mkdir 为目录对象创建一个空目录 (没有目录概念的后端可以什么都不做)
	Mkdir(ctx context.Context, name string) error

	// Get 根据名字读取内容
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Has 检查对象是否存在 (push 用它跳过已上传的文件)
	Has(ctx context.Context, name string) (bool, error)

	// List 返回所有文件名 (不含目录)
	List(ctx context.Context) ([]string, error)
}
