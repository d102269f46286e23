package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/dumptest"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env 一个隔离的工作目录：dump、输出目录、catalog、manifest 都在里面
type env struct {
	dir      string
	dump     string
	output   string
	catalog  string
	manifest string
	config   string
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:      dir,
		dump:     filepath.Join(dir, "nand.bin"),
		output:   filepath.Join(dir, "extracted"),
		catalog:  filepath.Join(dir, ".ycarve", "catalog.db"),
		manifest: filepath.Join(dir, "run.ycm"),
		config:   filepath.Join(dir, "config.yaml"),
	}
	require.NoError(t, os.WriteFile(e.config, []byte("scan:\n  window: 32\n"), 0644))

	b := dumptest.New().Pad().
		Object(3, 1, "").
		Object(3, 1, "etc").
		File(1, "foo.txt", dumptest.Content(100)).
		Header(6, 1, "bad").Pad().
		Object(2, 1, "link").
		Fill(64)
	require.NoError(t, os.WriteFile(e.dump, b.Bytes(), 0644))
	return e
}

// execute 模拟一次命令行调用
func (e *env) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--config", e.config, "--output", e.output, "--catalog", e.catalog))

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags 清掉上一次调用留在全局命令上的参数值
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestIntegration_ScanFlow(t *testing.T) {
	e := setupEnv(t)

	// 1. scan
	out, errOut, err := e.execute(t, "scan", e.dump, "--manifest", e.manifest)
	require.NoError(t, err)

	assert.Contains(t, out, `Directory found at offset: 0x20 "yaffs_root"`)
	assert.Contains(t, out, `File found at offset:`)
	assert.Contains(t, out, `extracted foo.txt`)
	assert.Contains(t, out, `Symlink found at offset:`)
	assert.Contains(t, out, "Rejected:")
	assert.Contains(t, errOut, "Ignoring chunk at offset")

	got, err := os.ReadFile(filepath.Join(e.output, "foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, dumptest.Content(100), got)

	// 2. history
	out, _, err = e.execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "nand.bin")
	assert.Contains(t, out, "done")

	out, _, err = e.execute(t, "history", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "foo.txt")
	assert.Contains(t, out, "rejected")

	out, _, err = e.execute(t, "history", "1", "--type", "symlink,directory")
	require.NoError(t, err)
	assert.Contains(t, out, "link")
	assert.Contains(t, out, "etc")
	assert.NotContains(t, out, "foo.txt")

	_, _, err = e.execute(t, "history", "1", "--type", "socket")
	assert.ErrorContains(t, err, "unknown object type")

	// 3. show
	out, _, err = e.execute(t, "show", e.manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "foo.txt")
	assert.Contains(t, out, "extracted")
	assert.NotContains(t, out, "rejected")
}

func TestIntegration_ListWritesNothing(t *testing.T) {
	e := setupEnv(t)

	out, _, err := e.execute(t, "list", e.dump)
	require.NoError(t, err)
	assert.Contains(t, out, `File found at offset:`)
	assert.Contains(t, out, "content 100B at")

	assert.NoDirExists(t, e.output)
}

func TestIntegration_ExitCodes(t *testing.T) {
	e := setupEnv(t)

	// 输入打不开
	_, _, err := e.execute(t, "scan", filepath.Join(e.dir, "missing.bin"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFatalSetup)
	assert.Equal(t, ExitFatal, ExitCode(err))
	assert.NoDirExists(t, e.output, "输入打不开时不建输出目录")

	// 参数个数不对
	_, _, err = e.execute(t, "scan")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))

	assert.Equal(t, ExitOK, ExitCode(nil))
}

func TestIntegration_OutputDirUnusable(t *testing.T) {
	e := setupEnv(t)
	// 输出路径被一个普通文件占了
	require.NoError(t, os.WriteFile(e.output, []byte("x"), 0644))

	_, _, err := e.execute(t, "scan", e.dump)
	require.Error(t, err)
	assert.Equal(t, ExitFatal, ExitCode(err))

	// list 不需要输出目录
	_, _, err = e.execute(t, "list", e.dump)
	assert.NoError(t, err)
}

func TestIntegration_CatalogUnavailable(t *testing.T) {
	e := setupEnv(t)
	blocker := filepath.Join(e.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	e.catalog = filepath.Join(blocker, "catalog.db")

	_, errOut, err := e.execute(t, "scan", e.dump)
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(err))
	assert.Contains(t, errOut, "catalog unavailable")

	got, err := os.ReadFile(filepath.Join(e.output, "foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, dumptest.Content(100), got)

	// 没有 catalog 时 history 报错
	_, _, err = e.execute(t, "history")
	assert.ErrorContains(t, err, "no catalog configured")
}

func TestIntegration_PushNeedsBucket(t *testing.T) {
	e := setupEnv(t)
	_, _, err := e.execute(t, "scan", e.dump)
	require.NoError(t, err)

	_, _, err = e.execute(t, "push")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}
