package meta

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus 扫描的生命周期
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Run 一次对某个 dump 的扫描
// 用于 ycarve history，回答"这个镜像什么时候、用什么参数扫过"
type Run struct {
	ID uint `gorm:"primaryKey"`

	Source     string `gorm:"index;type:varchar(1024);not null"`
	SourceSize int64
	Output     string `gorm:"type:varchar(1024)"`
	Algorithm  string `gorm:"type:varchar(16)"`

	// Config 记录扫描参数 (窗口长度、字节序等)，结构随版本变化，用 JSON 存
	Config datatypes.JSON

	Status RunStatus `gorm:"index;type:varchar(16);not null"`

	// 计数 (扫描结束时回填)
	Objects   int
	Extracted int
	Excluded  int
	Rejected  int
	Failed    int
	Bytes     int64

	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
}

// ObjectRecord 扫描中找到的一个对象头
// (run_id, offset) 唯一：同一次扫描里重复记录同一位置是幂等的
type ObjectRecord struct {
	ID     uint  `gorm:"primaryKey"`
	RunID  uint  `gorm:"uniqueIndex:idx_run_offset;not null"`
	Offset int64 `gorm:"column:obj_offset;uniqueIndex:idx_run_offset;not null"`

	Type     uint32
	ParentID int32
	Name     string `gorm:"index;type:varchar(512)"`
	Status   string `gorm:"type:varchar(16);not null"`

	ContentOffset int64
	Size          int64
	Digest        string `gorm:"type:varchar(64)"`
	Error         string `gorm:"type:text"`

	// PushedAt push 成功后回填
	PushedAt *time.Time
}

// TableName 强制指定表名
func (ObjectRecord) TableName() string {
	return "objects"
}
