package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"yaffscarve/cmd/ycarve/commands"
)

func main() {
	// Ctrl-C 取消扫描，已经写出的文件和 catalog 记录保留
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(commands.ExitCode(err))
	}
}
