// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"yaffscarve/pkg/carver"
	"yaffscarve/pkg/chunker"
	"yaffscarve/pkg/config"
	"yaffscarve/pkg/core"
	"yaffscarve/pkg/exporter"
	"yaffscarve/pkg/header"
	"yaffscarve/pkg/ignore"
	"yaffscarve/pkg/meta"
	"yaffscarve/pkg/storage"
	"yaffscarve/pkg/storage/cache"
	"yaffscarve/pkg/storage/disk"
	"yaffscarve/pkg/storage/s3"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务
type App struct {
	// Store 在第一次 OpenStore 之前为 nil
	Store     storage.Store
	OutputDir string
	storeType string

	Scanner *chunker.Scanner
	Parser  *header.Parser
	Matcher *ignore.Matcher
	Digest  core.DigestAlgorithm

	// Catalog 为 nil 表示没有配置 catalog.dsn
	Catalog *meta.Repository
	db      *meta.DB
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 扫描与解析参数
	scanCfg, err := config.ScanConfig()
	if err != nil {
		return nil, err
	}
	scanner, err := chunker.NewScanner(scanCfg)
	if err != nil {
		return nil, err
	}
	hdrOpts, err := config.HeaderOptions()
	if err != nil {
		return nil, err
	}

	digest := core.DigestAlgorithm(viper.GetString("digest.algorithm"))
	if _, err := core.NewDigester(digest); err != nil {
		return nil, err
	}

	matcher, err := ignore.NewMatcher(viper.GetString("output.exclude_file"))
	if err != nil {
		return nil, err
	}

	// 2. 存储层按需初始化 (见 OpenStore)，这里只检查类型
	storeType := viper.GetString("storage.type")
	switch storeType {
	case "disk", "", "s3":
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}

	a := &App{
		OutputDir: viper.GetString("output.dir"),
		Scanner:   scanner,
		Parser:    header.NewParser(scanner, hdrOpts),
		Matcher:   matcher,
		Digest:    digest,
		storeType: storeType,
	}

	// 3. 扫描目录 (可选)，打不开只告警，恢复不依赖它
	if dsn := viper.GetString("catalog.dsn"); dsn != "" {
		db, err := meta.NewDB(ctx, meta.Config{Driver: viper.GetString("catalog.driver"), DSN: dsn})
		if err != nil {
			slog.Warn("catalog unavailable, continuing without it", slog.String("dsn", dsn), slog.Any("err", err))
		} else {
			a.db = db
			a.Catalog = meta.NewRepository(db)
		}
	}

	return a, nil
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// CarveOptions 每次扫描不同的部分
type CarveOptions struct {
	DryRun    bool
	Stdout    io.Writer
	Stderr    io.Writer
	Recorders []carver.Recorder
}

// OpenStore 初始化输出存储 (disk 会创建输出目录)，只做一次
func (a *App) OpenStore(ctx context.Context) (storage.Store, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	store, err := initStore(ctx, a.storeType)
	if err != nil {
		return nil, err
	}
	a.Store = store
	return store, nil
}

// NewCarver 用 App 里的零件组装一个 Carver
// dry run 不碰输出存储
func (a *App) NewCarver(ctx context.Context, opts CarveOptions) (*carver.Carver, error) {
	var store storage.Store
	if !opts.DryRun {
		var err error
		if store, err = a.OpenStore(ctx); err != nil {
			return nil, err
		}
	}
	ext, err := exporter.NewExtractor(a.Scanner, store, exporter.Options{
		Matcher: a.Matcher,
		Digest:  a.Digest,
	})
	if err != nil {
		return nil, err
	}
	return carver.New(carver.Config{
		Scanner:    a.Scanner,
		Parser:     a.Parser,
		Extractor:  ext,
		Store:      store,
		CreateDirs: viper.GetBool("output.create_dirs"),
		DryRun:     opts.DryRun,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
		Recorders:  opts.Recorders,
	})
}

// LocalStore 返回 output.dir 上的磁盘存储，供 push 读取
func (a *App) LocalStore() (*disk.Adapter, error) {
	if viper.GetString("storage.type") != "disk" {
		return nil, errors.New("push reads a local output dir; storage.type must be disk")
	}
	return disk.NewAdapter(a.OutputDir)
}

// RemoteStore 返回 push 的目标 (S3，配置了 Redis 时带存在性缓存)
func (a *App) RemoteStore(ctx context.Context) (storage.Store, error) {
	return initS3(ctx)
}

// initStore 根据配置初始化存储后端
func initStore(ctx context.Context, storeType string) (storage.Store, error) {
	switch storeType {
	case "disk", "":
		return disk.NewAdapter(viper.GetString("output.dir"))
	case "s3":
		return initS3(ctx)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}
}

func initS3(ctx context.Context) (storage.Store, error) {
	cfg := s3.Config{
		Endpoint:        viper.GetString("s3.endpoint"),
		Region:          viper.GetString("s3.region"),
		Bucket:          viper.GetString("s3.bucket"),
		Prefix:          viper.GetString("s3.prefix"),
		AccessKeyID:     viper.GetString("s3.access_key"),
		SecretAccessKey: viper.GetString("s3.secret_key"),
	}
	remote, err := s3.NewAdapter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init s3 storage: %w", err)
	}

	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return remote, nil
	}

	cached, err := cache.NewCachedStore(remote, cache.Config{
		RedisURL:  redisURL,
		TTL:       viper.GetDuration("cache.ttl"),
		Namespace: cfg.Bucket + "/" + cfg.Prefix,
	})
	if err != nil {
		// 缓存只是加速，连不上就直接用 S3
		slog.Warn("redis cache unavailable, using s3 directly", slog.Any("err", err))
		return remote, nil
	}
	slog.Debug("redis cache enabled", slog.String("namespace", cfg.Bucket+"/"+cfg.Prefix))
	return cached, nil
}
