package core

import "errors"

// 错误分类
// chunk 级别的错误都在离发生点最近的地方被吸收 (跳过当前候选，继续扫描)
// 只有 ErrFatalSetup 会终止整个运行
var (
	// ErrTruncated 剩余字节不足以完成一次结构化读取
	ErrTruncated = errors.New("truncated read")

	// ErrEndOfStream 扫描器在寻找下一个块时耗尽了介质，这是正常结束
	ErrEndOfStream = errors.New("end of stream")

	// ErrInvalidType 类型字段超出 [0, 5]
	ErrInvalidType = errors.New("invalid object type")

	// ErrEmptyName 非根对象的名字为空
	ErrEmptyName = errors.New("empty name on non-root object")

	// ErrNoBlockTerminator 找块尾时跑到了介质末尾
	ErrNoBlockTerminator = errors.New("no block terminator before end of medium")

	// ErrExtraction 创建或写入某个输出文件失败，只影响该对象
	ErrExtraction = errors.New("extraction failed")

	// ErrFatalSetup 打不开输入或建不了输出目录
	ErrFatalSetup = errors.New("fatal setup error")
)

// IsChunkLevel 判断错误是否只影响当前 chunk
func IsChunkLevel(err error) bool {
	return errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrNoBlockTerminator) ||
		errors.Is(err, ErrExtraction)
}
