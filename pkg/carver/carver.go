// Package carver 驱动整个恢复流程: 找块 → 解析对象头 → 按类型分发
package carver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/core"
	"yaffscarve/pkg/cursor"
	"yaffscarve/pkg/exporter"
	"yaffscarve/pkg/header"
	"yaffscarve/pkg/manifest"
	"yaffscarve/pkg/storage"
	"yaffscarve/pkg/types"
)

// hexdumpLen 被拒绝的 chunk 在 debug 日志里打印多少字节
const hexdumpLen = 16

// Recorder 接收每个对象 (以及被拒绝的 chunk) 的处理结果
// manifest.Manifest 和 meta.RunRecorder 都实现了它
type Recorder interface {
	Record(ctx context.Context, e manifest.Entry) error
}

// Config 组装一个 Carver 需要的所有零件
type Config struct {
	Scanner   *chunker.Scanner
	Parser    *header.Parser
	Extractor *exporter.Extractor

	// Store 用于给目录对象建目录；为 nil 时不建
	Store      storage.Store
	CreateDirs bool

	// DryRun 只报告，不写任何输出 (File 的内容仍然会被越过)
	DryRun bool

	Stdout io.Writer // 对象通知
	Stderr io.Writer // 拒绝/失败诊断

	Recorders []Recorder
	Logger    *slog.Logger
}

// Carver 单线程顺序扫描一个 dump
type Carver struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Carver, error) {
	if cfg.Scanner == nil || cfg.Parser == nil || cfg.Extractor == nil {
		return nil, errors.New("carver: scanner, parser and extractor are required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Carver{cfg: cfg, logger: logger}, nil
}

// Run 从游标当前位置扫描到介质末尾
// 只有介质本身的读错误和 ctx 取消会提前返回，chunk 级别的问题都在循环内部吸收
func (cv *Carver) Run(ctx context.Context, c *cursor.Cursor) (*Summary, error) {
	sum := NewSummary()

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		// 1. Scanning
		if _, err := cv.cfg.Scanner.FindNextBlock(c); err != nil {
			if errors.Is(err, core.ErrEndOfStream) {
				return sum, nil
			}
			return sum, fmt.Errorf("scan at 0x%x: %w", c.Position(), err)
		}

		// 2. HeaderCandidate
		start := c.Position()
		hdr, err := cv.cfg.Parser.Parse(c)
		if err != nil {
			if !core.IsChunkLevel(err) {
				return sum, err
			}
			// 3a. Rejected → Scanning
			if err := cv.reject(ctx, c, start, err, sum); err != nil {
				return sum, err
			}
			continue
		}

		// 3b. Dispatch(type) → Scanning
		sum.addObject(hdr.Type)
		exporter.PrintObject(cv.cfg.Stdout, hdr)
		if err := cv.dispatch(ctx, c, hdr, sum); err != nil {
			return sum, err
		}
	}
}

// reject 报告并越过一个不是对象头的 chunk
// FindNextBlock 保证了块长度至少是 MinBlockLen，所以这里一定前进
func (cv *Carver) reject(ctx context.Context, c *cursor.Cursor, start int64, cause error, sum *Summary) error {
	sum.Rejected++
	off := types.Offset(start)
	exporter.PrintRejected(cv.cfg.Stderr, off, cause)

	if _, err := c.Seek(start, io.SeekStart); err != nil {
		return err
	}
	if cv.logger.Enabled(ctx, slog.LevelDebug) {
		head, _ := c.ReadExact(int(min(c.Remaining(), hexdumpLen)))
		cv.logger.DebugContext(ctx, "rejected chunk",
			slog.String("offset", off.String()),
			slog.String("err", cause.Error()),
			slog.String("head", hex.EncodeToString(head)),
		)
		if _, err := c.Seek(start, io.SeekStart); err != nil {
			return err
		}
	}

	if _, err := cv.cfg.Scanner.SkipBlock(c); err != nil && !core.IsChunkLevel(err) {
		return err
	}

	cv.record(ctx, manifest.Entry{Offset: off, Status: manifest.StatusRejected, Error: cause.Error()})
	return nil
}

func (cv *Carver) dispatch(ctx context.Context, c *cursor.Cursor, hdr *core.ObjectHeader, sum *Summary) error {
	entry := manifest.Entry{
		Offset:   hdr.Offset,
		Type:     hdr.Type,
		ParentID: hdr.ParentID,
		Name:     hdr.DisplayName(),
		Status:   manifest.StatusNoted,
	}

	switch hdr.Type {
	case core.TypeFile:
		if err := cv.handleFile(ctx, c, hdr, &entry, sum); err != nil {
			return err
		}
	case core.TypeDirectory:
		cv.handleDirectory(ctx, hdr, &entry, sum)
	default:
		// Unknown / Symlink / Hardlink / Special 只报告
	}

	cv.record(ctx, entry)
	return nil
}

func (cv *Carver) handleFile(ctx context.Context, c *cursor.Cursor, hdr *core.ObjectHeader, entry *manifest.Entry, sum *Summary) error {
	var (
		res *exporter.Result
		err error
	)
	if cv.cfg.DryRun {
		res, err = cv.cfg.Extractor.SkipContent(c, hdr)
	} else {
		res, err = cv.cfg.Extractor.ExtractFile(ctx, c, hdr)
	}

	if res != nil {
		entry.ContentOffset = res.ContentOffset
		entry.Size = res.Size
	}

	if err != nil {
		if !core.IsChunkLevel(err) {
			return err
		}
		sum.Failed++
		entry.Status = manifest.StatusFailed
		entry.Error = err.Error()
		exporter.PrintExtractFailed(cv.cfg.Stderr, hdr, err)
		return nil
	}

	switch {
	case cv.cfg.DryRun:
		fmt.Fprintf(cv.cfg.Stdout, "  content %s at %s\n", exporter.FormatSize(res.Size), res.ContentOffset)
	case res.Excluded:
		sum.Excluded++
		entry.Status = manifest.StatusExcluded
		exporter.PrintExtracted(cv.cfg.Stdout, res, cv.cfg.Extractor.Digest())
	default:
		sum.Extracted++
		sum.Bytes += res.Written
		entry.Status = manifest.StatusExtracted
		entry.Digest = res.Digest
		exporter.PrintExtracted(cv.cfg.Stdout, res, cv.cfg.Extractor.Digest())
	}
	return nil
}

func (cv *Carver) handleDirectory(ctx context.Context, hdr *core.ObjectHeader, entry *manifest.Entry, sum *Summary) {
	if cv.cfg.DryRun || !cv.cfg.CreateDirs || cv.cfg.Store == nil {
		return
	}
	// 根目录就是输出目录本身
	if hdr.IsRoot() {
		return
	}

	name, err := storage.SafeName(hdr.Name)
	if err == nil {
		err = cv.cfg.Store.Mkdir(ctx, name)
	}
	if err != nil {
		err = fmt.Errorf("%w: mkdir: %w", core.ErrExtraction, err)
		sum.Failed++
		entry.Status = manifest.StatusFailed
		entry.Error = err.Error()
		exporter.PrintExtractFailed(cv.cfg.Stderr, hdr, err)
	}
}

// record 把条目交给所有 Recorder
// 记录失败不影响扫描，只打日志
func (cv *Carver) record(ctx context.Context, e manifest.Entry) {
	for _, r := range cv.cfg.Recorders {
		if err := r.Record(ctx, e); err != nil {
			cv.logger.WarnContext(ctx, "failed to record object",
				slog.String("offset", e.Offset.String()),
				slog.String("err", err.Error()),
			)
		}
	}
}
