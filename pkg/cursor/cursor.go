package cursor

import (
	"fmt"
	"io"
	"os"

	"yaffscarve/pkg/core"
)

// DefaultPageSize 是预读页大小
// 扫描器是逐字节读、频繁回退的，缓存一页可以避免每个字节一次系统调用
const DefaultPageSize = 64 * 1024

// Mark 是一个保存下来的读位置，用于 lookahead 之后恢复
type Mark int64

// Cursor 是 dump 上可定位、可读的视图
// 位置是单一所有者的：谁在调用谁就拥有它，探测前必须 Mark，探测后必须 Restore
type Cursor struct {
	r      io.ReaderAt
	size   int64
	pos    int64
	closer io.Closer

	// 预读页，[pageOff, pageOff+pageLen) 有效
	page    []byte
	pageOff int64
	pageLen int
}

// New 在任意 io.ReaderAt 上创建 Cursor (测试里用 bytes.Reader)
func New(r io.ReaderAt, size int64) *Cursor {
	return &Cursor{
		r:    r,
		size: size,
		page: make([]byte, DefaultPageSize),
	}
}

// Open 只读打开 dump 文件
func Open(path string) (*Cursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open dump: %w", core.ErrFatalSetup, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat dump: %w", core.ErrFatalSetup, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrFatalSetup, path)
	}

	c := New(f, st.Size())
	c.closer = f
	return c, nil
}

// Close 关闭底层文件 (如果是 Open 打开的)
func (c *Cursor) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Cursor) Position() int64  { return c.pos }
func (c *Cursor) Size() int64      { return c.size }
func (c *Cursor) Remaining() int64 { return max(c.size-c.pos, 0) }

func (c *Cursor) Mark() Mark     { return Mark(c.pos) }
func (c *Cursor) Restore(m Mark) { c.pos = int64(m) }

// Seek 实现 io.Seeker
// 允许定位到末尾之后 (之后的读取会返回 ErrTruncated)，但不允许负数
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.pos + offset
	case io.SeekEnd:
		abs = c.size + offset
	default:
		return c.pos, fmt.Errorf("cursor: invalid whence %d", whence)
	}
	if abs < 0 {
		return c.pos, fmt.Errorf("cursor: negative position %d", abs)
	}
	c.pos = abs
	return abs, nil
}

// ReadByte 实现 io.ByteReader，到达末尾时返回 core.ErrTruncated
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= c.pageOff && c.pos < c.pageOff+int64(c.pageLen) {
		b := c.page[c.pos-c.pageOff]
		c.pos++
		return b, nil
	}
	var one [1]byte
	if err := c.ReadFull(one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// ReadFull 读满 p，否则返回 core.ErrTruncated，且位置不变
func (c *Cursor) ReadFull(p []byte) error {
	if err := c.readAt(p, c.pos); err != nil {
		return err
	}
	c.pos += int64(len(p))
	return nil
}

// ReadExact 读取恰好 n 个字节
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("cursor: negative read length %d", n)
	}
	buf := make([]byte, n)
	if err := c.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// CopyN 把接下来的 n 个字节原样写入 w
// 中途读不够或写不进去都会中止，返回已写入的字节数
func (c *Cursor) CopyN(w io.Writer, n int64) (int64, error) {
	buf := make([]byte, min(n, 32*1024))
	var written int64
	for written < n {
		chunk := buf[:min(int64(len(buf)), n-written)]
		if err := c.ReadFull(chunk); err != nil {
			return written, err
		}
		nw, err := w.Write(chunk)
		written += int64(nw)
		if err != nil {
			return written, err
		}
		if nw != len(chunk) {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// readAt 从预读页或底层介质读取，不移动位置
func (c *Cursor) readAt(p []byte, off int64) error {
	if off+int64(len(p)) > c.size {
		return fmt.Errorf("%w: need %d bytes at 0x%x, %d remain", core.ErrTruncated, len(p), off, max(c.size-off, 0))
	}
	if len(p) == 0 {
		return nil
	}

	// 1. 命中预读页
	if off >= c.pageOff && off+int64(len(p)) <= c.pageOff+int64(c.pageLen) {
		copy(p, c.page[off-c.pageOff:])
		return nil
	}

	// 2. 大块读取直接穿透
	if len(p) > len(c.page) {
		return c.readMedium(p, off)
	}

	// 3. 重新装载一页
	n, err := c.r.ReadAt(c.page, off)
	if err != nil && err != io.EOF {
		c.pageLen = 0
		return fmt.Errorf("cursor: read medium at 0x%x: %w", off, err)
	}
	c.pageOff, c.pageLen = off, n
	if n < len(p) {
		return fmt.Errorf("%w: medium returned %d of %d bytes at 0x%x", core.ErrTruncated, n, len(p), off)
	}
	copy(p, c.page[:len(p)])
	return nil
}

func (c *Cursor) readMedium(p []byte, off int64) error {
	n, err := c.r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err != nil && err != io.EOF {
		return fmt.Errorf("cursor: read medium at 0x%x: %w", off, err)
	}
	return fmt.Errorf("%w: medium returned %d of %d bytes at 0x%x", core.ErrTruncated, n, len(p), off)
}
