package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/manifest"
	"yaffscarve/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := &DB{conn: db}
	require.NoError(t, metaDB.AutoMigrate())

	return NewRepository(metaDB)
}

// -----------------------------------------------------------------------------
// 测试用例
// -----------------------------------------------------------------------------

func TestRepository_RunLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// 1. 开始
	id := mustStartRun(t, repo, "nand.bin")
	run, err := repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.JSONEq(t, `{"window":32}`, string(run.Config))

	// 2. 结束
	counts := RunCounts{Objects: 3, Extracted: 1, Rejected: 2, Bytes: 100}
	require.NoError(t, repo.FinishRun(ctx, id, RunDone, counts))

	run, err = repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunDone, run.Status)
	assert.Equal(t, 3, run.Objects)
	assert.Equal(t, int64(100), run.Bytes)
	assert.NotNil(t, run.FinishedAt)

	// 3. 重复结束
	err = repo.FinishRun(ctx, id, RunFailed, RunCounts{})
	assert.ErrorIs(t, err, ErrRunFinished)
}

func TestRepository_RunNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetRun(ctx, 42)
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = repo.FinishRun(ctx, 42, RunDone, RunCounts{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_ListRuns(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a := mustStartRun(t, repo, "a.bin")
	b := mustStartRun(t, repo, "b.bin")
	c := mustStartRun(t, repo, "a.bin")

	// 手动控制时间，保证排序确定
	conn := repo.db.GetConn()
	base := time.Unix(1700000000, 0)
	require.NoError(t, conn.Model(&Run{}).Where("id = ?", a).Update("started_at", base).Error)
	require.NoError(t, conn.Model(&Run{}).Where("id = ?", b).Update("started_at", base.Add(time.Minute)).Error)
	require.NoError(t, conn.Model(&Run{}).Where("id = ?", c).Update("started_at", base.Add(2*time.Minute)).Error)

	all, err := repo.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, c, all[0].ID, "Newest run should be first")

	onlyA, err := repo.ListRuns(ctx, "a.bin", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, c, onlyA[0].ID)
	assert.Equal(t, a, onlyA[1].ID)

	limited, err := repo.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_RecordObject_Idempotency(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	id := mustStartRun(t, repo, "nand.bin")

	// 1. 同一位置写入两次
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x80, Type: 1, Name: "foo.txt", Status: "extracted"})
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x80, Type: 1, Name: "other", Status: "failed"}, "duplicate insert should be ignored")
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x20, Type: 3, Name: "yaffs_root", Status: "noted"})

	// 2. 第一条写入保留，按 offset 排序
	recs, err := repo.ListObjects(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(0x20), recs[0].Offset)
	assert.Equal(t, "foo.txt", recs[1].Name, "First write wins")

	// 3. 另一次扫描的同一位置不冲突
	other := mustStartRun(t, repo, "nand.bin")
	mustRecord(t, repo, &ObjectRecord{RunID: other, Offset: 0x80, Type: 1, Name: "foo.txt", Status: "extracted"})
	recs, err = repo.ListObjects(ctx, other)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRepository_ListObjects_ByType(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	id := mustStartRun(t, repo, "nand.bin")
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x20, Type: uint32(core.TypeDirectory), Name: "yaffs_root", Status: "noted"})
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x80, Type: uint32(core.TypeFile), Name: "foo.txt", Status: "extracted"})
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x100, Type: uint32(core.TypeSymlink), Name: "link", Status: "noted"})

	files, err := repo.ListObjects(ctx, id, core.TypeFile)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "foo.txt", files[0].Name)

	two, err := repo.ListObjects(ctx, id, core.TypeSymlink, core.TypeDirectory)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, int64(0x20), two[0].Offset)

	all, err := repo.ListObjects(ctx, id)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_MarkPushed(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	id := mustStartRun(t, repo, "nand.bin")
	mustRecord(t, repo, &ObjectRecord{RunID: id, Offset: 0x80, Type: 1, Name: "foo.txt", Status: "extracted"})

	require.NoError(t, repo.MarkPushed(ctx, id, "foo.txt"))

	recs, err := repo.ListObjects(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotNil(t, recs[0].PushedAt)
}

func TestNewDB_SQLiteFile(t *testing.T) {
	path := t.TempDir() + "/nested/catalog.db"
	db, err := NewDB(context.Background(), Config{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	defer db.Close()

	id, err := NewRepository(db).StartRun(context.Background(), "x.bin", 1, "", "sha256", nil)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestNewDB_UnknownDriver(t *testing.T) {
	_, err := NewDB(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestRunRecorder(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	id := mustStartRun(t, repo, "nand.bin")
	rec := repo.Recorder(id)

	require.NoError(t, rec.Record(ctx, manifest.Entry{
		Offset: 0x80, Type: core.TypeFile, ParentID: 1, Name: "foo.txt",
		Status: manifest.StatusExtracted, ContentOffset: 0xe0, Size: 10, Digest: types.Hash("abcd"),
	}))
	require.NoError(t, rec.Record(ctx, manifest.Entry{
		Offset: 0x200, Status: manifest.StatusRejected, Error: "invalid object type",
	}))

	recs, err := repo.ListObjects(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "foo.txt", recs[0].Name)
	assert.Equal(t, int64(0xe0), recs[0].ContentOffset)
	assert.Equal(t, "abcd", recs[0].Digest)
	assert.Equal(t, "rejected", recs[1].Status)
	assert.Equal(t, "invalid object type", recs[1].Error)
}
