// Package dumptest 构造合成的 NAND dump，供各个包的测试使用
package dumptest

import (
	"bytes"
	"encoding/binary"

	"yaffscarve/pkg/cursor"
)

const (
	// HeaderLen 是合成对象头 chunk 的长度 (不足部分用 0x00 补齐)
	HeaderLen = 64
	// WindowLen 和扫描器默认窗口一致
	WindowLen = 32
)

// Builder 以链式调用拼出一个 dump
type Builder struct {
	buf    bytes.Buffer
	order  binary.AppendByteOrder
	window int
}

func New() *Builder {
	return &Builder{order: binary.LittleEndian, window: WindowLen}
}

// WithOrder 切换对象头整数的字节序
func (b *Builder) WithOrder(order binary.AppendByteOrder) *Builder {
	b.order = order
	return b
}

// WithWindow 修改 Pad 写入的填充长度
func (b *Builder) WithWindow(n int) *Builder {
	b.window = n
	return b
}

// Fill 写入 n 个 0xFF
func (b *Builder) Fill(n int) *Builder {
	b.buf.Write(bytes.Repeat([]byte{0xff}, n))
	return b
}

// Pad 写入一个完整的填充窗口
func (b *Builder) Pad() *Builder { return b.Fill(b.window) }

func (b *Builder) Zeros(n int) *Builder {
	b.buf.Write(make([]byte, n))
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Header 写入一个对象头 chunk: [type][parent][ff ff][name][0x00 ...]
func (b *Builder) Header(typ uint32, parent int32, name string) *Builder {
	return b.Raw(HeaderBytes(b.order, typ, parent, name))
}

// Object 写入对象头并紧跟一个填充窗口
func (b *Builder) Object(typ uint32, parent int32, name string) *Builder {
	return b.Header(typ, parent, name).Pad()
}

// File 写入 File 类型对象头和它的数据块
func (b *Builder) File(parent int32, name string, content []byte) *Builder {
	return b.Object(1, parent, name).Raw(content).Pad()
}

// Offset 返回下一次写入的位置
func (b *Builder) Offset() int64 { return int64(b.buf.Len()) }

func (b *Builder) Bytes() []byte { return bytes.Clone(b.buf.Bytes()) }

// Cursor 在当前内容上创建游标
func (b *Builder) Cursor() *cursor.Cursor {
	data := b.Bytes()
	return cursor.New(bytes.NewReader(data), int64(len(data)))
}

// HeaderBytes 生成对象头 chunk 的原始字节
func HeaderBytes(order binary.AppendByteOrder, typ uint32, parent int32, name string) []byte {
	out := make([]byte, 0, HeaderLen)
	out = order.AppendUint32(out, typ)
	out = order.AppendUint32(out, uint32(parent))
	out = append(out, 0xff, 0xff)
	out = append(out, name...)
	for len(out) < HeaderLen {
		out = append(out, 0x00)
	}
	return out
}

// Content 生成 n 个不含 0xFF 的确定性字节，首字节非 0
func Content(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'a' + byte(i%26)
	}
	return out
}
