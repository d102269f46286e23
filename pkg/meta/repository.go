package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"yaffscarve/pkg/core"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRunNotFound = errors.New("run not found in catalog")
	ErrRunFinished = errors.New("run already finished")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 扫描记录 (Runs)
// -----------------------------------------------------------------------------

// StartRun 创建一条 running 状态的扫描记录，返回它的 ID
// params 会被序列化成 JSON 存入 Config 列
func (r *Repository) StartRun(ctx context.Context, source string, size int64, output, algo string, params any) (uint, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run config: %w", err)
	}

	run := Run{
		Source:     source,
		SourceSize: size,
		Output:     output,
		Algorithm:  algo,
		Config:     datatypes.JSON(raw),
		Status:     RunRunning,
		StartedAt:  time.Now(),
	}
	if err := r.db.GetConn().WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

// RunCounts 扫描结束时回填的计数
type RunCounts struct {
	Objects   int
	Extracted int
	Excluded  int
	Rejected  int
	Failed    int
	Bytes     int64
}

// FinishRun 回填计数并结束扫描
// 只有 running 状态的记录能被结束，重复调用返回 ErrRunFinished
func (r *Repository) FinishRun(ctx context.Context, id uint, status RunStatus, counts RunCounts) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		// SQL: UPDATE runs SET ... WHERE id = ? AND status = 'running'
		result := tx.Model(&Run{}).
			Where("id = ? AND status = ?", id, RunRunning).
			Updates(map[string]any{
				"status":      status,
				"objects":     counts.Objects,
				"extracted":   counts.Extracted,
				"excluded":    counts.Excluded,
				"rejected":    counts.Rejected,
				"failed":      counts.Failed,
				"bytes":       counts.Bytes,
				"finished_at": &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		// 区分"不存在"和"已经结束"
		var n int64
		if err := tx.Model(&Run{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrRunNotFound
		}
		return ErrRunFinished
	})
}

func (r *Repository) GetRun(ctx context.Context, id uint) (*Run, error) {
	var run Run
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按开始时间倒序列出扫描记录
// source 为空时不过滤，limit <= 0 时不限制条数
func (r *Repository) ListRuns(ctx context.Context, source string, limit int) ([]Run, error) {
	var runs []Run
	q := r.db.GetConn().WithContext(ctx)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("started_at DESC").Order("id DESC").Find(&runs).Error
	return runs, err
}

// -----------------------------------------------------------------------------
// 2. 对象记录 (Objects)
// -----------------------------------------------------------------------------

// RecordObject 写入一条对象记录 (幂等)
// 如果 (run_id, offset) 已存在，则什么都不做
func (r *Repository) RecordObject(ctx context.Context, rec *ObjectRecord) error {
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "obj_offset"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to record object: %w", err)
	}
	return nil
}

// ListObjects 按 dump 中的位置顺序返回一次扫描的对象
// 传了 types 时只返回这些类型
func (r *Repository) ListObjects(ctx context.Context, runID uint, types ...core.ObjectType) ([]ObjectRecord, error) {
	q := r.db.GetConn().WithContext(ctx).Where("run_id = ?", runID)
	if len(types) > 0 {
		raw := make([]uint32, len(types))
		for i, t := range types {
			raw[i] = uint32(t)
		}
		q = q.Where("type IN ?", raw)
	}

	var recs []ObjectRecord
	err := q.Order("obj_offset ASC").Find(&recs).Error
	return recs, err
}

// MarkPushed 标记一次扫描里某个名字的文件已经上传
func (r *Repository) MarkPushed(ctx context.Context, runID uint, name string) error {
	return r.db.GetConn().WithContext(ctx).
		Model(&ObjectRecord{}).
		Where("run_id = ? AND name = ?", runID, name).
		Update("pushed_at", time.Now()).Error
}
