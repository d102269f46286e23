package chunker

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/cursor"
)

// Heuristic 判断一段字节是不是“填充窗口”
type Heuristic struct {
	fill []byte // WindowLen 个 Sentinel
}

func NewHeuristic(windowLen int, sentinel byte) *Heuristic {
	return &Heuristic{fill: bytes.Repeat([]byte{sentinel}, windowLen)}
}

func (h *Heuristic) WindowLen() int { return len(h.fill) }

// IsFillWindow 当且仅当长度等于窗口长度且每个字节都是 Sentinel
func (h *Heuristic) IsFillWindow(b []byte) bool {
	return bytes.Equal(b, h.fill)
}

// lastNonFill 返回窗口里最后一个非填充字节的下标，没有则返回 -1
func (h *Heuristic) lastNonFill(b []byte) int {
	sentinel := h.fill[0]
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != sentinel {
			return i
		}
	}
	return -1
}

// DistanceToNextFill 从当前位置向前找第一个填充窗口
// 成功时游标停在窗口起点，返回之前的非填充字节数
// 介质先耗尽则返回 core.ErrEndOfStream，游标恢复原位
func (h *Heuristic) DistanceToNextFill(c *cursor.Cursor) (int64, error) {
	start := c.Position()
	window := make([]byte, len(h.fill))

	for off := start; ; {
		if _, err := c.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
		if err := c.ReadFull(window); err != nil {
			c.Seek(start, io.SeekStart)
			if errors.Is(err, core.ErrTruncated) {
				return 0, fmt.Errorf("%w: no fill window after 0x%x", core.ErrEndOfStream, start)
			}
			return 0, err
		}

		last := h.lastNonFill(window)
		if last < 0 {
			c.Seek(off, io.SeekStart)
			return off - start, nil
		}
		// 所有覆盖到 window[last] 的窗口都不可能是填充窗口，直接跳过
		// 结果和逐字节滑动完全一致
		off += int64(last) + 1
	}
}
