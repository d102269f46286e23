package header

import (
	"encoding/binary"
	"fmt"
	"io"

	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/core"
	"yaffscarve/pkg/cursor"
	"yaffscarve/pkg/types"
)

// separatorLen 是 parent id 和名字之间固定的两个字节 (通常是 0xFF 0xFF)
const separatorLen = 2

// Options 控制对象头的解码方式
type Options struct {
	ByteOrder binary.ByteOrder
	NameRule  NameRule
}

func DefaultOptions() Options {
	return Options{
		ByteOrder: binary.LittleEndian,
		NameRule:  NameRule{AbsorbLeadingFF: true},
	}
}

// ParseByteOrder 解析配置里的字节序名字
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "little", "le", "":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order: %q", name)
	}
}

// Parser 把扫描器找到的 chunk 解释成对象头
type Parser struct {
	scanner *chunker.Scanner
	order   binary.ByteOrder
	rule    NameRule
}

func NewParser(scanner *chunker.Scanner, opts Options) *Parser {
	if opts.ByteOrder == nil {
		opts.ByteOrder = binary.LittleEndian
	}
	return &Parser{
		scanner: scanner,
		order:   opts.ByteOrder,
		rule:    opts.NameRule,
	}
}

// Parse 在扫描器匹配到的位置解码对象头
// 成功时游标停在当前块尾
// 返回错误意味着“这不是一个合法的对象头”，调用方应跳过这个 chunk 继续扫描，绝不能当作流结束
func (p *Parser) Parse(c *cursor.Cursor) (*core.ObjectHeader, error) {
	start := c.Position()

	// 1. 类型
	raw, err := c.ReadExact(4)
	if err != nil {
		return nil, fmt.Errorf("read object type: %w", err)
	}
	typ := core.ObjectType(p.order.Uint32(raw))
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %d at 0x%x", core.ErrInvalidType, uint32(typ), start)
	}

	// 2. parent id
	if raw, err = c.ReadExact(4); err != nil {
		return nil, fmt.Errorf("read parent id: %w", err)
	}
	hdr := &core.ObjectHeader{
		Type:     typ,
		ParentID: int32(p.order.Uint32(raw)),
		Offset:   types.Offset(start),
	}

	// 3. 分隔字节
	if _, err := c.ReadExact(separatorLen); err != nil {
		return nil, fmt.Errorf("skip separator: %w", err)
	}

	// 4. 名字长度
	skip, length, err := p.rule.Measure(c)
	if err != nil {
		return nil, err
	}

	switch {
	case length == 0 && hdr.ParentID == core.RootParentID && typ == core.TypeDirectory:
		// 5. 根目录：没有名字，parent id 是 1，归一化为 0 (根不是自己的孩子)
		hdr.Name = []byte(core.RootName)
		hdr.ParentID = 0
	case length == 0:
		// 6. 其他空名字都是非法的
		return nil, fmt.Errorf("%w: %s with parent %d at 0x%x", core.ErrEmptyName, typ, hdr.ParentID, start)
	default:
		// 7. 读取名字
		if _, err := c.Seek(int64(skip), io.SeekCurrent); err != nil {
			return nil, err
		}
		if hdr.Name, err = c.ReadExact(length); err != nil {
			return nil, fmt.Errorf("read name: %w", err)
		}
	}

	// 8. 跳到块尾
	if _, err := p.scanner.BlockLength(c); err != nil {
		return nil, fmt.Errorf("header at 0x%x: %w", start, err)
	}
	return hdr, nil
}
