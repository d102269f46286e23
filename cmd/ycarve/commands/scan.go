package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yaffscarve/pkg/app"
	"yaffscarve/pkg/carver"
	"yaffscarve/pkg/cursor"
	"yaffscarve/pkg/manifest"
	"yaffscarve/pkg/meta"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dump>",
	Short: "Scan a dump and extract every file object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCarve(cmd, args[0], false)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <dump>",
	Short: "Report the objects in a dump without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCarve(cmd, args[0], true)
	},
}

// runCarve scan 和 list 共用的流程
func runCarve(cmd *cobra.Command, path string, dryRun bool) error {
	if YC == nil {
		return fmt.Errorf("app not initialized")
	}
	ctx := cmd.Context()
	start := time.Now()

	// 1. 打开输入
	c, err := cursor.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	// 2. 输入可读之后才建输出目录，list 不建
	if !dryRun {
		if _, err := YC.OpenStore(ctx); err != nil {
			return err
		}
	}

	// 3. 准备记录端
	var recorders []carver.Recorder
	var m *manifest.Manifest
	if mpath := viper.GetString("manifest.path"); mpath != "" {
		m = manifest.New(path, c.Size(), YC.Digest)
		recorders = append(recorders, m)
	}

	var runID uint
	if YC.Catalog != nil {
		runID, err = YC.Catalog.StartRun(ctx, path, c.Size(), YC.OutputDir, string(YC.Digest), runParams(dryRun))
		if err != nil {
			// catalog 只是留痕，失败不影响恢复
			slog.Warn("catalog unavailable, continuing without it", slog.Any("err", err))
		} else {
			recorders = append(recorders, YC.Catalog.Recorder(runID))
		}
	}

	// 4. 扫描
	cv, err := YC.NewCarver(ctx, app.CarveOptions{
		DryRun:    dryRun,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
		Recorders: recorders,
	})
	if err != nil {
		return err
	}
	sum, runErr := cv.Run(ctx, c)

	// 5. 收尾：即使中途失败也把已有结果落下来
	if runID != 0 {
		status := meta.RunDone
		if runErr != nil {
			status = meta.RunFailed
		}
		// ctx 可能已经被取消，收尾用独立的 context
		if err := YC.Catalog.FinishRun(context.WithoutCancel(ctx), runID, status, runCounts(sum)); err != nil {
			slog.Warn("failed to finish catalog run", slog.Uint64("run", uint64(runID)), slog.Any("err", err))
		}
	}
	if m != nil {
		if err := manifest.WriteFile(viper.GetString("manifest.path"), m); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("write manifest: %w", err))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	sum.Print(cmd.OutOrStdout())
	slog.Info("scan finished",
		slog.String("source", path),
		slog.Bool("dry_run", dryRun),
		slog.Uint64("run", uint64(runID)),
		slog.Duration("dur", time.Since(start)),
	)
	return runErr
}

func runParams(dryRun bool) map[string]any {
	return map[string]any{
		"window":            viper.GetInt("scan.window"),
		"sentinel":          viper.GetInt("scan.sentinel"),
		"min_block":         viper.GetInt("scan.min_block"),
		"zero_run":          viper.GetInt("scan.zero_run"),
		"endian":            viper.GetString("header.endian"),
		"absorb_leading_ff": viper.GetBool("header.absorb_leading_ff"),
		"exclude_file":      viper.GetString("output.exclude_file"),
		"dry_run":           dryRun,
	}
}

func runCounts(s *carver.Summary) meta.RunCounts {
	return meta.RunCounts{
		Objects:   s.Objects,
		Extracted: s.Extracted,
		Excluded:  s.Excluded,
		Rejected:  s.Rejected,
		Failed:    s.Failed,
		Bytes:     s.Bytes,
	}
}

func init() {
	for _, cmd := range []*cobra.Command{scanCmd, listCmd} {
		cmd.Flags().String("exclude", "", "gitignore-style file of names not to extract")
		cmd.Flags().String("manifest", "", "write a compressed manifest of the run to this path")
		rootCmd.AddCommand(cmd)
	}
}
