package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mustStartRun 创建扫描记录，如果失败直接终止测试
func mustStartRun(t *testing.T, repo *Repository, source string, msgAndArgs ...any) uint {
	t.Helper()
	id, err := repo.StartRun(context.Background(), source, 4096, "out", "sha256", map[string]any{"window": 32})
	require.NoError(t, err, msgAndArgs...)
	return id
}

// mustRecord 强制写入对象记录，失败则终止
func mustRecord(t *testing.T, repo *Repository, rec *ObjectRecord, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.RecordObject(context.Background(), rec), msgAndArgs...)
}
