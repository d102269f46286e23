package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/core"
	"yaffscarve/pkg/cursor"
	"yaffscarve/pkg/ignore"
	"yaffscarve/pkg/storage"
	"yaffscarve/pkg/types"
)

// Options 控制提取行为
type Options struct {
	Matcher *ignore.Matcher      // 可选，匹配的文件只跳过不提取
	Digest  core.DigestAlgorithm // 默认 sha256
}

// Extractor 把 File 对象头后面的数据块原样复制到输出存储
type Extractor struct {
	scanner *chunker.Scanner
	store   storage.Store
	matcher *ignore.Matcher
	digest  core.DigestAlgorithm
}

func NewExtractor(scanner *chunker.Scanner, store storage.Store, opts Options) (*Extractor, error) {
	// 提前验证算法，避免扫到一半才报错
	if _, err := core.NewDigester(opts.Digest); err != nil {
		return nil, err
	}
	if opts.Digest == "" {
		opts.Digest = core.DigestSHA256
	}
	return &Extractor{
		scanner: scanner,
		store:   store,
		matcher: opts.Matcher,
		digest:  opts.Digest,
	}, nil
}

func (e *Extractor) Digest() core.DigestAlgorithm { return e.digest }

// Result 描述一次提取
type Result struct {
	Name          string       // 落盘用的名字 (已清洗)
	ContentOffset types.Offset // 数据块在 dump 中的位置
	Size          int64        // 数据块长度
	Written       int64        // 实际写入的字节数
	Digest        types.Hash
	Excluded      bool
}

// ExtractFile 在 File 对象头之后找到数据块并复制出来
// 游标必须停在对象头的块尾 (header.Parser.Parse 成功后就是这样)
//
// 只要数据块找到了，不管成功、失败还是被排除，返回时游标都停在数据块尾，
// 外层扫描从那里继续
func (e *Extractor) ExtractFile(ctx context.Context, c *cursor.Cursor, hdr *core.ObjectHeader) (*Result, error) {
	res, err := e.locate(c, hdr)
	if err != nil {
		return res, err
	}
	start, end := int64(res.ContentOffset), int64(res.ContentOffset)+res.Size

	// 1. 无论后面发生什么，最后都停在数据块尾
	defer c.Seek(end, io.SeekStart)
	if _, err := c.Seek(start, io.SeekStart); err != nil {
		return res, err
	}

	name, err := storage.SafeName(hdr.Name)
	if err != nil {
		return res, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	res.Name = name

	if e.matcher.Matches(name) {
		res.Excluded = true
		return res, nil
	}

	// 2. 复制
	written, digest, err := e.copyTo(ctx, c, name, res.Size)
	res.Written = written
	if err != nil {
		return res, fmt.Errorf("%w: %s after %d of %d bytes: %w", core.ErrExtraction, name, written, res.Size, err)
	}
	res.Digest = digest
	return res, nil
}

// copyTo 把 n 个字节写入 store 中的 name，同时计算摘要
// 中途失败时部分输出会被关闭保留 (取证场景下残缺的数据也有价值)
func (e *Extractor) copyTo(ctx context.Context, c *cursor.Cursor, name string, n int64) (int64, types.Hash, error) {
	w, err := e.store.Create(ctx, name)
	if err != nil {
		return 0, "", fmt.Errorf("create output: %w", err)
	}

	h, _ := core.NewDigester(e.digest)
	written, copyErr := c.CopyN(io.MultiWriter(w, h), n)
	closeErr := w.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		return written, "", err
	}
	return written, core.SumHex(h), nil
}

// SkipContent 只定位数据块并越过它，不写任何输出 (ycarve list 使用)
func (e *Extractor) SkipContent(c *cursor.Cursor, hdr *core.ObjectHeader) (*Result, error) {
	res, err := e.locate(c, hdr)
	if err != nil {
		return res, err
	}
	res.Name, _ = storage.SafeName(hdr.Name)
	_, err = c.Seek(int64(res.ContentOffset)+res.Size, io.SeekStart)
	return res, err
}

// locate 找到对象头后面的数据块并测量长度
// 成功时游标停在数据块尾
func (e *Extractor) locate(c *cursor.Cursor, hdr *core.ObjectHeader) (*Result, error) {
	if hdr.Type != core.TypeFile {
		return nil, fmt.Errorf("%w: %s is a %s, not a file", core.ErrExtraction, hdr.DisplayName(), hdr.Type)
	}

	// 1. 数据块紧跟在对象头的块后面，用同样的边界规则定位
	if _, err := e.scanner.FindNextBlock(c); err != nil {
		return nil, fmt.Errorf("%w: locate content of %q: %v", core.ErrExtraction, hdr.Name, err)
	}

	// 2. 测量内容长度
	start := c.Position()
	n, err := e.scanner.BlockLength(c)
	if err != nil {
		return nil, fmt.Errorf("%w: measure content of %q: %w", core.ErrExtraction, hdr.Name, err)
	}

	res := &Result{ContentOffset: types.Offset(start), Size: n}
	if n < 1 {
		return res, fmt.Errorf("%w: empty content for %q at %s", core.ErrExtraction, hdr.Name, res.ContentOffset)
	}
	return res, nil
}
