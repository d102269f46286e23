package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"yaffscarve/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
// push 对每个文件都要先问一次 Has，远端是 S3 时这个缓存能省掉大量 HEAD 请求
type CachedStore struct {
	backend   storage.Store // 被装饰的底层存储 (如 S3)
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

type Config struct {
	RedisURL  string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL       time.Duration // 过期时间
	Namespace string        // 区分不同的 bucket/prefix，例如 "ycarve-cases/017"
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend:   backend,
		client:    client,
		ttl:       cfg.TTL,
		namespace: cfg.Namespace,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(name string) string {
	return "ycarve:obj:" + s.namespace + ":" + name
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, name string) (bool, error) {
	key := s.cacheKey(name)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级：Redis 挂了就直接查底层存储
		slog.Warn("redis exists failed, falling back to backend", slog.String("key", key), slog.Any("err", err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, name)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填
	if found {
		s.client.Set(ctx, key, "1", s.ttl)
	}
	return found, nil
}

// cachedWriter 在底层写入成功关闭之后才写缓存
type cachedWriter struct {
	io.WriteCloser
	ctx  context.Context
	s    *CachedStore
	name string
}

func (w *cachedWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return err
	}
	// 这里的 Set 错误可以忽略，不影响主流程
	w.s.client.Set(w.ctx, w.s.cacheKey(w.name), "1", w.s.ttl)
	return nil
}

func (s *CachedStore) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.backend.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedWriter{WriteCloser: w, ctx: ctx, s: s, name: name}, nil
}

// 以下透传 - 我们不缓存内容，只缓存存在性

func (s *CachedStore) Mkdir(ctx context.Context, name string) error {
	return s.backend.Mkdir(ctx, name)
}

func (s *CachedStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, name)
}

func (s *CachedStore) List(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx)
}
