// Package launcher собирает движки в сценарии запуска: выделенный
// сервер, клиент к удалённому серверу и локальная связка
// «сервер + два клиента» для обкатки на одной машине.
package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/client"
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/engine"
	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/server"
	"github.com/annelo/go-voxel-engine/internal/storage"
)

const (
	// DefaultWorldDir — каталог сохранений мира.
	DefaultWorldDir = "world"

	// localJoinWait — сколько локальный сервер ждёт подключения
	// клиентов, прежде чем счесть запуск неудавшимся.
	localJoinWait = 20 * time.Second

	// localClientStagger — пауза между запуском сервера и клиентов,
	// чтобы слушатель успел подняться.
	localClientStagger = 1 * time.Second
)

// RunServer запускает выделенный сервер и блокируется до его завершения.
func RunServer(ctx context.Context, cfg config.Config, netctx *network.Context,
	log *zap.SugaredLogger) engine.Status {

	var ws storage.WorldStorage
	store, err := storage.NewBinaryStorage(DefaultWorldDir, "world",
		time.Now().UnixNano(), log)
	if err != nil {
		// Мир остаётся играбельным, просто без сохранений
		log.Warnw("failed to open world storage, running without persistence",
			"dir", DefaultWorldDir, "error", err)
	} else {
		ws = store
		defer func() {
			if err := store.Close(); err != nil {
				log.Errorw("failed to close world storage", "error", err)
			}
		}()
	}

	srv := server.New(cfg.Server, netctx, ws, log, cfg.Addr, server.DefaultJoinWait)
	return srv.Run(ctx)
}

// RunClient подключает интерактивный клиент к серверу из конфигурации.
func RunClient(ctx context.Context, cfg config.Config, name string,
	netctx *network.Context, log *zap.SugaredLogger) engine.Status {

	cl := client.New(cfg.Client, name, netctx, client.NewTermboxRenderer(), log)
	return cl.Run(ctx, cfg.Addr)
}

// RunLocalTest поднимает сервер и двух клиентов в одном процессе:
// интерактивного игрока и безэкранного бота. Завершение любого клиента
// гасит всю связку; итоговый статус — статус интерактивного клиента,
// если он не завершился штатно.
func RunLocalTest(ctx context.Context, cfg config.Config, netctx *network.Context,
	log *zap.SugaredLogger) engine.Status {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.New(cfg.Server, netctx, nil, log, cfg.Addr, localJoinWait)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		st := srv.Run(ctx)
		log.Infow("local server finished", "status", st)
		cancel()
	}()

	// Даём слушателю подняться
	select {
	case <-ctx.Done():
		wg.Wait()
		return engine.StatusCouldNotConnect
	case <-time.After(localClientStagger):
	}

	bot := client.New(cfg.Client, "player-2", netctx, nil, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		st := bot.Run(ctx, cfg.Addr)
		log.Infow("local bot finished", "status", st)
	}()

	player := client.New(cfg.Client, "player-1", netctx, client.NewTermboxRenderer(), log)
	status := player.Run(ctx, cfg.Addr)

	bot.Stop()
	srv.Stop()
	cancel()
	wg.Wait()
	return status
}

// ExitMessage возвращает единственное прощальное сообщение по статусу.
func ExitMessage(st engine.Status) string {
	switch st {
	case engine.StatusOK, engine.StatusExit:
		return "Игра завершена."
	case engine.StatusServerDisconnect:
		return "Сервер разорвал соединение."
	case engine.StatusServerTimeout:
		return "Сервер не отвечает, соединение потеряно."
	case engine.StatusGraphicsInitError:
		return "Не удалось инициализировать графику."
	case engine.StatusCouldNotConnect:
		return "Не удалось подключиться к серверу."
	case engine.StatusNetworkInitError:
		return "Не удалось инициализировать сеть."
	default:
		return fmt.Sprintf("Игра завершена со статусом %v.", st)
	}
}
