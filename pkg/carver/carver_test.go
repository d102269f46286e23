package carver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/core"
	"yaffscarve/pkg/dumptest"
	"yaffscarve/pkg/exporter"
	"yaffscarve/pkg/header"
	"yaffscarve/pkg/ignore"
	"yaffscarve/pkg/manifest"
	"yaffscarve/pkg/storage/disk"
)

type harness struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
	carver *Carver
}

type option func(*Config)

func withDryRun() option { return func(c *Config) { c.DryRun = true } }

func withRecorders(r ...Recorder) option {
	return func(c *Config) { c.Recorders = append(c.Recorders, r...) }
}

func newHarness(t *testing.T, matcher *ignore.Matcher, opts ...option) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}

	scanner, err := chunker.NewScanner(chunker.DefaultConfig())
	require.NoError(t, err)
	store, err := disk.NewAdapter(h.dir)
	require.NoError(t, err)
	ext, err := exporter.NewExtractor(scanner, store, exporter.Options{Matcher: matcher})
	require.NoError(t, err)

	cfg := Config{
		Scanner:    scanner,
		Parser:     header.NewParser(scanner, header.DefaultOptions()),
		Extractor:  ext,
		Store:      store,
		CreateDirs: true,
		Stdout:     &h.stdout,
		Stderr:     &h.stderr,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.carver, err = New(cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) run(t *testing.T, b *dumptest.Builder) *Summary {
	t.Helper()
	sum, err := h.carver.Run(context.Background(), b.Cursor())
	require.NoError(t, err)
	return sum
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// sampleDump 一个包含各种情况的 dump
type sampleDump struct {
	b                      *dumptest.Builder
	rootAt, fooAt, badAt   int64
	fooContent, logContent []byte
}

func newSampleDump() *sampleDump {
	d := &sampleDump{fooContent: dumptest.Content(100), logContent: dumptest.Content(20)}
	b := dumptest.New().Pad()

	d.rootAt = b.Offset()
	b.Object(3, 1, "")
	b.Object(3, 1, "etc")

	d.fooAt = b.Offset()
	b.File(1, "foo.txt", d.fooContent)
	b.Object(2, 1, "link")

	// 类型 6 的对象头
	d.badAt = b.Offset()
	b.Header(6, 1, "bad").Pad()

	// 8 字节噪声和夹在填充里的 4 个 0
	b.Raw([]byte("xxxxxxxx")).Pad()
	b.Fill(10).Zeros(4).Fill(10)

	b.Object(5, 1, "dev")
	b.File(1, "boot.log", d.logContent)
	b.Fill(64)

	d.b = b
	return d
}

func TestRun_AllSentinel(t *testing.T) {
	h := newHarness(t, nil)
	sum := h.run(t, dumptest.New().Fill(4096))

	assert.Zero(t, sum.Objects)
	assert.Zero(t, sum.Rejected)
	assert.Empty(t, h.files(t))
	assert.Empty(t, h.stdout.String())
}

func TestRun_EmptyInput(t *testing.T) {
	h := newHarness(t, nil)
	sum := h.run(t, dumptest.New())
	assert.Zero(t, sum.Objects)
}

func TestRun_FullDump(t *testing.T) {
	h := newHarness(t, nil)
	d := newSampleDump()

	sum := h.run(t, d.b)

	// 1. 计数
	assert.Equal(t, 6, sum.Objects)
	assert.Equal(t, 2, sum.ByType[core.TypeDirectory])
	assert.Equal(t, 2, sum.ByType[core.TypeFile])
	assert.Equal(t, 1, sum.ByType[core.TypeSymlink])
	assert.Equal(t, 1, sum.ByType[core.TypeSpecial])
	assert.Equal(t, 2, sum.Extracted)
	assert.Equal(t, 1, sum.Rejected, "type 6 rejected, 8-byte noise not reported")
	assert.Zero(t, sum.Failed)
	assert.Equal(t, int64(120), sum.Bytes)

	// 2. 输出文件逐字节一致
	got, err := os.ReadFile(filepath.Join(h.dir, "foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, d.fooContent, got)
	got, err = os.ReadFile(filepath.Join(h.dir, "boot.log"))
	require.NoError(t, err)
	assert.Equal(t, d.logContent, got)

	// 3. 目录对象建成了目录，根目录对应输出目录本身
	info, err := os.Stat(filepath.Join(h.dir, "etc"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoDirExists(t, filepath.Join(h.dir, core.RootName))

	// 4. 通知
	out := h.stdout.String()
	assert.Contains(t, out, fmt.Sprintf("Directory found at offset: 0x%x \"yaffs_root\"", d.rootAt))
	assert.Contains(t, out, fmt.Sprintf("File found at offset: 0x%x \"foo.txt\"", d.fooAt))
	assert.Contains(t, out, "Symlink found at offset")
	assert.Contains(t, out, "Special filesystem object found at offset")

	// 5. 每个被拒绝的 chunk 恰好一行诊断
	errLines := lines(h.stderr.String())
	require.Len(t, errLines, 1)
	assert.Contains(t, errLines[0], fmt.Sprintf("0x%x", d.badAt))
}

func TestRun_Idempotent(t *testing.T) {
	d := newSampleDump()

	first := newHarness(t, nil).run(t, d.b)
	second := newHarness(t, nil).run(t, d.b)
	assert.Equal(t, first, second)
}

func TestRun_InvalidTypeMakesProgress(t *testing.T) {
	h := newHarness(t, nil)
	b := dumptest.New().Pad()
	for range 50 {
		b.Header(6, 1, "x").Pad()
	}

	sum := h.run(t, b)
	assert.Equal(t, 50, sum.Rejected)
	assert.Zero(t, sum.Objects)
	assert.Len(t, lines(h.stderr.String()), 50)
}

func TestRun_UnterminatedHeaderAtEnd(t *testing.T) {
	h := newHarness(t, nil)
	// 最后一个对象头后面没有填充
	b := dumptest.New().Pad().Object(2, 1, "link").Header(3, 1, "tail")

	sum := h.run(t, b)
	assert.Equal(t, 1, sum.Objects)
}

func TestRun_ShortNoiseIgnored(t *testing.T) {
	h := newHarness(t, nil)
	b := dumptest.New().Pad().Raw([]byte{1, 2, 3, 4, 5, 6, 7, 8}).Pad().Object(3, 1, "etc")

	sum := h.run(t, b)
	assert.Equal(t, 1, sum.Objects)
	assert.Zero(t, sum.Rejected)
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t, nil, withDryRun())

	// 文件内容本身长得像一个对象头：只要它被当作内容越过，就不会被报告
	disguised := dumptest.HeaderBytes(binary.LittleEndian, 3, 1, "fake")
	b := dumptest.New().Pad().Object(3, 1, "").File(1, "foo.txt", disguised)

	sum := h.run(t, b)
	assert.Equal(t, 2, sum.Objects)
	assert.Zero(t, sum.Extracted)
	assert.Empty(t, h.files(t), "dry run writes nothing, not even directories")
	assert.NotContains(t, h.stdout.String(), "fake")
	assert.Contains(t, h.stdout.String(), "content 64B at")
}

func TestRun_Excluded(t *testing.T) {
	m, err := ignore.NewMatcher("", "*.log")
	require.NoError(t, err)
	h := newHarness(t, m)

	sum := h.run(t, newSampleDump().b)
	assert.Equal(t, 1, sum.Extracted)
	assert.Equal(t, 1, sum.Excluded)
	assert.Equal(t, int64(100), sum.Bytes)
	assert.NotContains(t, h.files(t), "boot.log")
}

func TestRun_ExtractionFailureIsolated(t *testing.T) {
	h := newHarness(t, nil)
	b := dumptest.New().Pad().
		File(1, "..", dumptest.Content(30)).
		File(1, "ok.bin", dumptest.Content(40))

	sum := h.run(t, b)
	assert.Equal(t, 2, sum.Objects)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Extracted)
	assert.Contains(t, h.files(t), "ok.bin")
	assert.Len(t, lines(h.stderr.String()), 1)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, manifest.Entry) error {
	f.calls++
	return errors.New("catalog unavailable")
}

func TestRun_Recorders(t *testing.T) {
	m := manifest.New("nand.bin", 0, core.DigestSHA256)
	bad := &failingRecorder{}
	h := newHarness(t, nil, withRecorders(m, bad))
	d := newSampleDump()

	sum := h.run(t, d.b)

	// 失败的 Recorder 不影响扫描
	assert.Equal(t, 6, sum.Objects)
	assert.Equal(t, sum.Objects+sum.Rejected, bad.calls)

	// manifest 不收录被拒绝的 chunk
	require.Len(t, m.Entries, 6)
	extracted := m.Extracted()
	require.Len(t, extracted, 2)
	assert.Equal(t, "foo.txt", extracted[0].Name)
	assert.Equal(t, int64(100), extracted[0].Size)

	want := sha256.Sum256(d.fooContent)
	assert.Equal(t, hex.EncodeToString(want[:]), extracted[0].Digest.String())
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.carver.Run(ctx, newSampleDump().b.Cursor())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresParts(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSummary_Print(t *testing.T) {
	s := NewSummary()
	s.addObject(core.TypeFile)
	s.addObject(core.TypeDirectory)
	s.Extracted = 1
	s.Bytes = 2048

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "Objects:")
	assert.Contains(t, out, "file:")
	assert.Contains(t, out, "directory:")
	assert.Contains(t, out, "2.0KB")
	assert.NotContains(t, out, "symlink")
}
