package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/types"

	"github.com/klauspost/compress/zstd"
)

// FormatVersion 当前 manifest 格式版本
const FormatVersion = 1

// magic 放在压缩数据前面，用来快速识别文件
var magic = []byte("YCMF")

var ErrBadManifest = errors.New("not a ycarve manifest")

// Status 描述一个对象最后的处理结果
type Status string

const (
	StatusNoted     Status = "noted"     // 只报告 (目录、链接等)
	StatusExtracted Status = "extracted" // 内容已写出
	StatusExcluded  Status = "excluded"  // 被排除规则跳过
	StatusFailed    Status = "failed"    // 提取中途失败
	StatusRejected  Status = "rejected"  // 不是合法的对象头
)

// Entry 对应 dump 中找到的一个对象头
type Entry struct {
	Offset        types.Offset    `cbor:"o"`
	Type          core.ObjectType `cbor:"t"`
	ParentID      int32           `cbor:"p"`
	Name          string          `cbor:"n"`
	Status        Status          `cbor:"st"`
	ContentOffset types.Offset    `cbor:"co,omitempty"`
	Size          int64           `cbor:"s,omitempty"`
	Digest        types.Hash      `cbor:"d,omitempty"`
	Error         string          `cbor:"e,omitempty"`
}

// Manifest 一次扫描的完整记录
type Manifest struct {
	Version    int                  `cbor:"v"`
	Source     string               `cbor:"src"`
	SourceSize int64                `cbor:"sz"`
	Algorithm  core.DigestAlgorithm `cbor:"alg"`
	CreatedAt  int64                `cbor:"ts"`
	Entries    []Entry              `cbor:"entries"`
}

func New(source string, size int64, algo core.DigestAlgorithm) *Manifest {
	return &Manifest{
		Version:    FormatVersion,
		Source:     source,
		SourceSize: size,
		Algorithm:  algo,
		CreatedAt:  time.Now().Unix(),
	}
}

func (m *Manifest) Add(e Entry) { m.Entries = append(m.Entries, e) }

// Record 让 Manifest 可以直接挂到扫描循环上
// 被拒绝的 chunk 不进 manifest，它们只在 catalog 里留痕
func (m *Manifest) Record(_ context.Context, e Entry) error {
	if e.Status != StatusRejected {
		m.Add(e)
	}
	return nil
}

// Extracted 返回所有成功写出的条目，push 用它决定上传什么
func (m *Manifest) Extracted() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Status == StatusExtracted {
			out = append(out, e)
		}
	}
	return out
}

// 编码器和解码器可以并发复用
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("manifest: zstd encoder initialization failed: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("manifest: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode 格式: magic + zstd(cbor(manifest))
func Encode(m *Manifest) ([]byte, error) {
	raw, err := core.EncodeObject(m)
	if err != nil {
		return nil, err
	}
	out := append(bytes.Clone(magic), encoder.EncodeAll(raw, nil)...)
	return out, nil
}

func Decode(data []byte) (*Manifest, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, ErrBadManifest
	}
	raw, err := decoder.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	var m Manifest
	if err := core.DecodeObject(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

func Write(w io.Writer, m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func WriteFile(path string, m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
