package core

import "fmt"

// ObjectType 定义了 YAFFS2 对象头里的类型字段
// 取值范围是闭区间 [0, 5]，越界值不是 Unknown，而是解码失败
type ObjectType uint32

const (
	TypeUnknown   ObjectType = 0
	TypeFile      ObjectType = 1
	TypeSymlink   ObjectType = 2
	TypeDirectory ObjectType = 3
	TypeHardLink  ObjectType = 4
	TypeSpecial   ObjectType = 5

	maxObjectType = TypeSpecial
)

// Valid 判断解码出来的类型是否在已知范围内
func (t ObjectType) Valid() bool { return t <= maxObjectType }

func (t ObjectType) String() string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeFile:
		return "file"
	case TypeSymlink:
		return "symlink"
	case TypeDirectory:
		return "directory"
	case TypeHardLink:
		return "hardlink"
	case TypeSpecial:
		return "special"
	default:
		return fmt.Sprintf("invalid(%d)", uint32(t))
	}
}

// ParseObjectType 是 String 的逆操作，history --type 用它解析过滤条件
func ParseObjectType(name string) (ObjectType, error) {
	for t := TypeUnknown; t <= maxObjectType; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type: %q", name)
}
