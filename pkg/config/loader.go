package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/header"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	SetDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .ycarve
		viper.AddConfigPath(".ycarve")
		// 3. 用户主目录下的 .ycarve (拿不到主目录就跳过)
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".ycarve"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (YCARVE_SCAN_WINDOW 等)
	viper.SetEnvPrefix("YCARVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 只是没找到配置文件不算错，格式错才是
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("no config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	}

	return nil
}

// SetDefaults 写入所有键的默认值
func SetDefaults() {
	// 扫描参数
	viper.SetDefault("scan.window", chunker.DefaultWindowLen)
	viper.SetDefault("scan.sentinel", int(chunker.DefaultSentinel))
	viper.SetDefault("scan.min_block", chunker.DefaultMinBlockLen)
	viper.SetDefault("scan.zero_run", chunker.DefaultZeroRunLen)

	// 对象头解析
	viper.SetDefault("header.endian", "little")
	viper.SetDefault("header.absorb_leading_ff", true)

	// 输出
	viper.SetDefault("output.dir", "extracted")
	viper.SetDefault("output.create_dirs", true)
	viper.SetDefault("output.exclude_file", "")

	// 存储默认值
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "")

	// 缓存 (redis_url 为空表示不启用)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	// 扫描目录 (dsn 为空表示不记录)
	viper.SetDefault("catalog.driver", "sqlite")
	viper.SetDefault("catalog.dsn", filepath.Join(".ycarve", "catalog.db"))

	viper.SetDefault("digest.algorithm", "sha256")
	viper.SetDefault("manifest.path", "")
	viper.SetDefault("push.concurrency", 4)
}

// ScanConfig 从 Viper 读取扫描器参数并校验
func ScanConfig() (chunker.Config, error) {
	sentinel := viper.GetInt("scan.sentinel")
	if sentinel < 0 || sentinel > 0xff {
		return chunker.Config{}, fmt.Errorf("scan.sentinel out of byte range: %d", sentinel)
	}
	cfg := chunker.Config{
		WindowLen:   viper.GetInt("scan.window"),
		Sentinel:    byte(sentinel),
		MinBlockLen: viper.GetInt("scan.min_block"),
		ZeroRunLen:  viper.GetInt("scan.zero_run"),
	}
	if err := cfg.Validate(); err != nil {
		return chunker.Config{}, err
	}
	return cfg, nil
}

// HeaderOptions 从 Viper 读取对象头解析参数
func HeaderOptions() (header.Options, error) {
	order, err := header.ParseByteOrder(viper.GetString("header.endian"))
	if err != nil {
		return header.Options{}, err
	}
	return header.Options{
		ByteOrder: order,
		NameRule:  header.NameRule{AbsorbLeadingFF: viper.GetBool("header.absorb_leading_ff")},
	}, nil
}
