package chunker

import "fmt"

// 块边界探测的默认参数 (单位: 字节)
// 这些是针对实际 dump 调出来的经验值，不是 YAFFS2 规范里的常量
const (
	DefaultWindowLen   = 32   // 连续多少个填充字节才算块边界
	DefaultSentinel    = 0xff // 擦除后 flash 的值
	DefaultMinBlockLen = 16   // 比这短的块当作噪声
	DefaultZeroRunLen  = 4    // 填充区里偶尔出现的全 0 串
)

// Config 控制块扫描器的行为
// WindowLen 同时是探测窗口长度和比较缓冲区长度，全局只有这一个值
type Config struct {
	WindowLen   int
	Sentinel    byte
	MinBlockLen int

	// ZeroRunLen 为 0 时关闭“填充区内全 0 串”的过滤
	ZeroRunLen int
}

func DefaultConfig() Config {
	return Config{
		WindowLen:   DefaultWindowLen,
		Sentinel:    DefaultSentinel,
		MinBlockLen: DefaultMinBlockLen,
		ZeroRunLen:  DefaultZeroRunLen,
	}
}

// Validate 检查参数组合是否能保证扫描前进
func (c Config) Validate() error {
	if c.WindowLen < 1 {
		return fmt.Errorf("window length must be positive, got %d", c.WindowLen)
	}
	if c.MinBlockLen < 1 {
		return fmt.Errorf("minimum block length must be positive, got %d", c.MinBlockLen)
	}
	if c.ZeroRunLen < 0 || c.ZeroRunLen == 1 {
		return fmt.Errorf("zero run length must be 0 (disabled) or at least 2, got %d", c.ZeroRunLen)
	}
	if c.ZeroRunLen > 0 && c.Sentinel == 0 {
		return fmt.Errorf("zero run filter cannot be used with a 0x00 sentinel")
	}
	return nil
}
