package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"yaffscarve/pkg/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var pushRunID uint

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Mirror the extracted files to S3",
	Long: `Uploads every file in the output directory to the configured S3 bucket.
Files that already exist remotely are skipped; with cache.redis_url set, the
existence checks are answered from Redis.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if YC == nil {
			return fmt.Errorf("app not initialized")
		}
		ctx := cmd.Context()

		// 1. 源和目标
		local, err := YC.LocalStore()
		if err != nil {
			return err
		}
		remote, err := YC.RemoteStore(ctx)
		if err != nil {
			return err
		}

		names, err := local.List(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to push (output directory is empty). Run 'ycarve scan <dump>' first.")
			return nil
		}

		// 2. 并发上传
		p := &pusher{
			local:  local,
			remote: remote,
			out:    cmd.OutOrStdout(),
			runID:  pushRunID,
		}
		p.pushAll(ctx, names, viper.GetInt("push.concurrency"))

		fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d uploaded, %d skipped, %d failed.\n",
			p.uploaded.Load(), p.skipped.Load(), p.failed.Load())
		if p.failed.Load() > 0 {
			return fmt.Errorf("some files failed to upload")
		}
		return nil
	},
}

type pusher struct {
	local  storage.Store
	remote storage.Store
	runID  uint

	mu  sync.Mutex // 保护 out
	out io.Writer

	uploaded, skipped, failed atomic.Int64
}

// pushAll 单个文件失败不会取消其他上传
func (p *pusher) pushAll(ctx context.Context, names []string, limit int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for _, name := range names {
		g.Go(func() error {
			status, err := p.pushOne(gctx, name)
			switch {
			case err != nil:
				p.failed.Add(1)
				p.printf("❌ %s: %v\n", name, err)
				slog.Warn("push failed", slog.String("name", name), slog.Any("err", err))
			case status == "skipped":
				p.skipped.Add(1)
				p.printf("✅ %s (already remote)\n", name)
			default:
				p.uploaded.Add(1)
				p.printf("✅ %s uploaded\n", name)
				p.markPushed(gctx, name)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *pusher) pushOne(ctx context.Context, name string) (string, error) {
	exists, err := p.remote.Has(ctx, name)
	if err != nil {
		return "", fmt.Errorf("check failed: %w", err)
	}
	if exists {
		return "skipped", nil
	}

	src, err := p.local.Get(ctx, name)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := p.remote.Create(ctx, name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	// Close 才真正提交
	if err := dst.Close(); err != nil {
		return "", err
	}
	return "uploaded", nil
}

func (p *pusher) markPushed(ctx context.Context, name string) {
	if p.runID == 0 || YC.Catalog == nil {
		return
	}
	if err := YC.Catalog.MarkPushed(ctx, p.runID, name); err != nil {
		slog.Warn("failed to mark pushed", slog.String("name", name), slog.Any("err", err))
	}
}

func (p *pusher) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func init() {
	pushCmd.Flags().UintVar(&pushRunID, "run", 0, "catalog run to mark uploaded files in")
	rootCmd.AddCommand(pushCmd)
}
