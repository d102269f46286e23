package meta

import (
	"context"

	"yaffscarve/pkg/manifest"
)

// RunRecorder 把扫描循环产生的条目写进某一次 Run
type RunRecorder struct {
	repo  *Repository
	runID uint
}

func (r *Repository) Recorder(runID uint) *RunRecorder {
	return &RunRecorder{repo: r, runID: runID}
}

func (rr *RunRecorder) RunID() uint { return rr.runID }

func (rr *RunRecorder) Record(ctx context.Context, e manifest.Entry) error {
	return rr.repo.RecordObject(ctx, &ObjectRecord{
		RunID:         rr.runID,
		Offset:        int64(e.Offset),
		Type:          uint32(e.Type),
		ParentID:      e.ParentID,
		Name:          e.Name,
		Status:        string(e.Status),
		ContentOffset: int64(e.ContentOffset),
		Size:          e.Size,
		Digest:        string(e.Digest),
		Error:         e.Error,
	})
}
