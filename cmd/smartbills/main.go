package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"
)

//go:embed appconfig/appconfig.json
var appConfig []byte

func main() {
	// Ctrl+C 时当前批次停在下一次等待处,已完成的记录写入断点
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
