package client

import (
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/world"
)

// Input — ввод игрока, накопленный за один кадр.
type Input struct {
	// Move — смещение игрока в блоках за кадр.
	Move entity.Vec3
	// Place — поставить каменный блок в клетке игрока.
	Place bool
	// Break — разрушить блок в клетке игрока.
	Break bool
	// Quit — игрок попросил выйти.
	Quit bool
}

// Renderer рисует мир и собирает ввод игрока. Движок вызывает Frame
// каждый тик из своей тик-горутины.
type Renderer interface {
	Init(opts config.ClientOptions) error
	Frame(w *world.World, self *entity.Entity, messages []string) Input
	Close()
}

// NopRenderer — безэкранный рендерер для ботов и локальных тестов.
type NopRenderer struct{}

func (NopRenderer) Init(config.ClientOptions) error { return nil }

func (NopRenderer) Frame(*world.World, *entity.Entity, []string) Input { return Input{} }

func (NopRenderer) Close() {}
