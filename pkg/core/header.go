package core

import "yaffscarve/pkg/types"

const (
	// RootParentID 是根目录在 dump 里出现的 parent id
	RootParentID int32 = 1
	// RootName 是根目录的替代名字 (根目录在磁盘上没有名字)
	RootName = "yaffs_root"
)

// ObjectHeader 是从一个 chunk 里解码出来的对象头
// 它是瞬时的：解码 -> 分发 -> 丢弃，不跨迭代保存
type ObjectHeader struct {
	Type     ObjectType
	ParentID int32
	Name     []byte

	// Offset 是对象头在 dump 中的起始位置，仅用于诊断输出
	Offset types.Offset
}

// IsRoot 判断是否是 (归一化后的) 根目录
func (h *ObjectHeader) IsRoot() bool {
	return h.Type == TypeDirectory && h.ParentID == 0 && string(h.Name) == RootName
}

// DisplayName 返回可打印的名字
func (h *ObjectHeader) DisplayName() string {
	return string(h.Name)
}
