package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/protocol"
	"github.com/annelo/go-voxel-engine/internal/world"
)

// System описывает логику, выполняемую каждый тик цикла.
type System interface {
	// Init вызывается один раз перед запуском цикла.
	Init(deps Dependencies) error
	// Tick вызывается каждый игровой тик.
	Tick(ctx context.Context, dt time.Duration)
	// Name возвращает читаемое имя системы.
	Name() string
}

// Dependencies передаются системам при инициализации.
type Dependencies struct {
	World *world.World
	Log   *zap.SugaredLogger
	// Broadcast рассылает сообщение всем подключённым клиентам.
	Broadcast func(m protocol.Message, reliable bool)
}
