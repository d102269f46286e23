package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"yaffscarve/pkg/app"
	"yaffscarve/pkg/config"
	"yaffscarve/pkg/core"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 进程退出码
const (
	ExitOK    = 0
	ExitError = 1
	ExitFatal = 2 // 打不开输入或建不了输出目录
)

var (
	cfgFile  string
	logLevel string
	// 全局应用实例，供子命令使用
	YC *app.App
)

// 不需要组装 App 的命令
var standalone = map[string]bool{"show": true, "help": true, "completion": true}

var rootCmd = &cobra.Command{
	Use:   "ycarve",
	Short: "ycarve: recover files from raw YAFFS2 NAND dumps",
	Long: `ycarve scans a raw NAND dump for YAFFS2 object headers without relying on
any filesystem metadata, reports every object it recognizes and copies the
content of file objects into an output directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(cmd.ErrOrStderr(), logLevel)

		// 1. 配置：默认值 → 配置文件 → 环境变量 → 命令行
		if err := config.Load(cfgFile); err != nil {
			return err
		}
		if err := bindFlags(cmd); err != nil {
			return err
		}

		if standalone[cmd.Name()] {
			return nil
		}

		// 2. 统一初始化 App (上一次命令失败时 PostRun 不会执行，先把旧的关掉)
		if YC != nil {
			YC.Close()
		}
		var err error
		YC, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize ycarve: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if YC == nil {
			return nil
		}
		err := YC.Close()
		YC = nil
		return err
	},
}

// Execute 是入口
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode 把错误映射成进程退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrFatalSetup):
		return ExitFatal
	default:
		return ExitError
	}
}

// flagKeys 命令行参数到 Viper 键的映射
// 用户既可以在 yaml 里写，也可以用命令行覆盖
var flagKeys = map[string]string{
	"output":   "output.dir",
	"exclude":  "output.exclude_file",
	"manifest": "manifest.path",
	"catalog":  "catalog.dsn",
	"endian":   "header.endian",
	"window":   "scan.window",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ycarve/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringP("output", "o", "", "directory to write extracted files to")
	pf.String("catalog", "", "catalog database (sqlite path or postgres dsn)")
	pf.String("endian", "", "byte order of header integers: little or big")
	pf.Int("window", 0, "fill window length in bytes")
}

// bindFlags 只绑定用户真正传了的参数，避免空值盖掉配置文件
func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setupLogger 日志写到 stderr，stdout 留给对象通知
func setupLogger(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}
