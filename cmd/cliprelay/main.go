package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/g960059/cliprelay/internal/cli"
	"github.com/g960059/cliprelay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	r := cli.NewRunner(config.DefaultListenAddr, os.Stdout, os.Stderr)
	code := r.Run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
