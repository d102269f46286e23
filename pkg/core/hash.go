package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"yaffscarve/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// 定义确定性的 CBOR 编码选项
// 相同的 manifest 内容必须生成相同的字节，方便比对两次恢复的结果
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	Sort: cbor.SortCanonical,

	// 2. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 3. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// --- 安全性配置 ---
	// manifest 可能来自别人的机器，限制容器大小防止恶意文件耗尽内存
	MaxArrayElements: 1 << 20,
	MaxMapPairs:      10000,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// EncodeObject 使用确定性模式编码
func EncodeObject(v any) ([]byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return data, nil
}

// DecodeObject 通用的解码函数 (供外部使用)
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// DigestAlgorithm 选择提取文件的摘要算法
type DigestAlgorithm string

const (
	DigestSHA256 DigestAlgorithm = "sha256"
	DigestBLAKE3 DigestAlgorithm = "blake3"
)

// NewDigester 根据算法名创建 hash.Hash
func NewDigester(algo DigestAlgorithm) (hash.Hash, error) {
	switch algo {
	case DigestSHA256, "":
		return sha256.New(), nil
	case DigestBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %q", algo)
	}
}

// SumHex 把 hash.Hash 的当前结果转成 types.Hash
func SumHex(h hash.Hash) types.Hash {
	return types.Hash(hex.EncodeToString(h.Sum(nil)))
}
