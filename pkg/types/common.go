// pkg/types/common.go
package types

import "fmt"

// Offset 是 dump 文件中的字节偏移
// 所有诊断输出统一使用十六进制，和 hexdump 工具对得上
type Offset int64

func (o Offset) String() string { return fmt.Sprintf("0x%x", int64(o)) }

// Hash 代表提取内容的摘要 (Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool  { return h == "" }
func (h Hash) IsValid() bool { return len(h) == 64 } // sha256 与 blake3 都是 32 字节

// Short 返回前 8 个字符，用于表格输出
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}
