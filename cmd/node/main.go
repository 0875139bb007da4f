package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohit02k5/QuantyX-Trading-Platform/params"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/node"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("node_init_failed", "err", err)
	}
	defer n.Close()

	sugar.Infow("node_starting",
		"api_addr", cfg.Gateway.Addr,
		"ws_addr", cfg.Fanout.Addr,
		"bus_mode", cfg.Bus.Mode,
		"sandbox", cfg.Execution.Sandbox)

	if err := n.Start(ctx); err != nil && ctx.Err() == nil {
		sugar.Fatalw("node_failed", "err", err)
	}
}
