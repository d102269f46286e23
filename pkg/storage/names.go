package storage

import (
	"fmt"
	"strings"
)

// SafeName 把 dump 里解码出来的原始名字变成可以落盘的文件名
// 名字来自不可信的输入，不能让它逃出输出目录
func SafeName(raw []byte) (string, error) {
	name := strings.ToValidUTF8(string(raw), "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		default:
			return r
		}
	}, name)

	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	}
	return name, nil
}
