package header

import (
	"fmt"

	"yaffscarve/pkg/cursor"
)

const (
	nameTerminator = 0x00
	nameFF         = 0xff
)

// NameRule 决定对象名在哪里结束
// 名字以 0x00 或 0xFF 结尾
//
// AbsorbLeadingFF: 在一些损坏的 dump 里，名字字段前面多出一个 0xFF。
// 打开后，名字字段开头的那一个 0xFF 会被静默吞掉 (每个对象头只吞一次)，
// 之后再遇到 0xFF 就是结束符。这条规则只在一个样本上验证过，所以单独拎出来，可以关掉。
type NameRule struct {
	AbsorbLeadingFF bool
}

// Measure 从当前位置测量名字，不消费任何字节
// skip 是被吞掉的前导字节数 (0 或 1)，length 是名字本身的长度
func (r NameRule) Measure(c *cursor.Cursor) (skip int, length int, err error) {
	mark := c.Mark()
	defer c.Restore(mark)

	b, err := c.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("measure name: %w", err)
	}
	if r.AbsorbLeadingFF && b == nameFF {
		skip = 1
		if b, err = c.ReadByte(); err != nil {
			return 0, 0, fmt.Errorf("measure name: %w", err)
		}
	}

	for b != nameTerminator && b != nameFF {
		length++
		if b, err = c.ReadByte(); err != nil {
			return 0, 0, fmt.Errorf("measure name: %w", err)
		}
	}
	return skip, length, nil
}
