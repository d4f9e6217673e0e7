package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/engine"
	"github.com/annelo/go-voxel-engine/internal/launcher"
	"github.com/annelo/go-voxel-engine/internal/network"
)

const configFile = "config.txt"

func main() {
	status := run()
	fmt.Println(launcher.ExitMessage(status))
	os.Exit(status.ExitCode())
}

func run() engine.Status {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось создать логгер: %v\n", err)
		return engine.StatusNetworkInitError
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		log.Warnw("failed to read config file, using defaults",
			"file", configFile, "error", err)
		cfg = config.Default()
	}
	config.ParseArgs(&cfg, os.Args[1:], log)

	// Сетевой контекст создаётся ровно один раз на процесс
	netctx, err := network.Init()
	if err != nil {
		log.Errorw("network init failed", "error", err)
		return engine.StatusNetworkInitError
	}
	defer netctx.Release()

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Mode {
	case config.ModeServer:
		log.Infow("starting dedicated server",
			"addr", cfg.Addr, "maxConnections", cfg.Server.MaxConnections)
		return launcher.RunServer(ctx, cfg, netctx, log)
	case config.ModeClient:
		log.Infow("starting client", "addr", cfg.Addr, "skin", cfg.Client.Skin)
		return launcher.RunClient(ctx, cfg, "player", netctx, log)
	default:
		log.Infow("starting local test: server and two clients")
		return launcher.RunLocalTest(ctx, cfg, netctx, log)
	}
}
