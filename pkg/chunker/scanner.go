package chunker

import (
	"errors"
	"fmt"
	"io"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/cursor"
)

// Scanner 在没有任何块索引的 dump 里寻找 chunk 边界
// 它是无状态的，所有位置信息都在调用方传进来的 Cursor 里
type Scanner struct {
	cfg       Config
	heuristic *Heuristic
}

func NewScanner(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scanner config: %w", err)
	}
	return &Scanner{
		cfg:       cfg,
		heuristic: NewHeuristic(cfg.WindowLen, cfg.Sentinel),
	}, nil
}

// BlockLength 返回当前位置到下一个填充窗口的距离
// 游标停在窗口边界 (不越过)，这样同一个窗口还能被当作下一个块前面的填充
// 找不到时返回 core.ErrNoBlockTerminator，游标恢复原位
func (s *Scanner) BlockLength(c *cursor.Cursor) (int64, error) {
	start := c.Position()
	n, err := s.heuristic.DistanceToNextFill(c)
	if errors.Is(err, core.ErrEndOfStream) {
		return 0, fmt.Errorf("%w at 0x%x: %w", core.ErrNoBlockTerminator, start, core.ErrTruncated)
	}
	return n, err
}

// SkipBlock 和 BlockLength 一样，但失败时把游标移到介质末尾
// 用于跳过被拒绝的 chunk，保证扫描一定前进
func (s *Scanner) SkipBlock(c *cursor.Cursor) (int64, error) {
	start := c.Position()
	n, err := s.BlockLength(c)
	if err != nil {
		end, _ := c.Seek(0, io.SeekEnd)
		return max(end-start, 0), err
	}
	return n, nil
}

// FindNextBlock 跳过填充，把游标定位到下一个可信 chunk 的第一个字节
// 返回跳过的字节数 (包括被当作噪声的短块)
// 介质耗尽时返回 core.ErrEndOfStream，表示扫描正常结束
func (s *Scanner) FindNextBlock(c *cursor.Cursor) (int64, error) {
	var skipped int64

	for {
		// 1. 逐字节跳过填充
		b, err := c.ReadByte()
		if err != nil {
			if errors.Is(err, core.ErrTruncated) {
				return skipped, core.ErrEndOfStream
			}
			return skipped, err
		}
		if b == s.cfg.Sentinel {
			skipped++
			continue
		}

		// 2. 填充区里偶尔夹着一串 0，来源不明，但当作填充是安全的
		if b == 0x00 && s.cfg.ZeroRunLen > 0 {
			zero, err := s.zeroRun(c)
			if err != nil {
				return skipped, err
			}
			if zero {
				skipped += int64(s.cfg.ZeroRunLen)
				continue
			}
		}

		// 3. 真正的非填充字节：量一下块有多长
		candidate := c.Position() - 1
		if _, err := c.Seek(candidate, io.SeekStart); err != nil {
			return skipped, err
		}
		n, err := s.BlockLength(c)
		if errors.Is(err, core.ErrNoBlockTerminator) {
			// 没有结尾的块既不能解析也不能提取，剩下的都跳过
			end, _ := c.Seek(0, io.SeekEnd)
			return skipped + end - candidate, core.ErrEndOfStream
		}
		if err != nil {
			return skipped, err
		}

		// 太短的块当作噪声，从块尾继续
		if n < int64(s.cfg.MinBlockLen) {
			skipped += n
			continue
		}

		// 4. 找到了，游标回到候选块第一个字节
		if _, err := c.Seek(candidate, io.SeekStart); err != nil {
			return skipped, err
		}
		return skipped, nil
	}
}

// zeroRun 在读到一个 0x00 之后调用，偷看后面 ZeroRunLen-1 个字节
// 全是 0 则消费掉并返回 true，否则游标恢复到那个 0 之后
func (s *Scanner) zeroRun(c *cursor.Cursor) (bool, error) {
	mark := c.Mark()
	rest, err := c.ReadExact(s.cfg.ZeroRunLen - 1)
	if err != nil {
		if errors.Is(err, core.ErrTruncated) {
			c.Restore(mark)
			return false, nil
		}
		return false, err
	}
	for _, b := range rest {
		if b != 0x00 {
			c.Restore(mark)
			return false, nil
		}
	}
	return true, nil
}
