package storage

import (
	"context"
	"fmt"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/entity"
)

// WorldStorage представляет интерфейс для хранения данных игрового мира
type WorldStorage interface {
	// SaveSection сохраняет секцию в хранилище
	SaveSection(ctx context.Context, s *chunk.Section) error

	// LoadSection загружает секцию из хранилища
	// Возвращает ошибку типа ErrSectionNotFound, если секция не найдена
	LoadSection(ctx context.Context, pos chunk.Position) (*chunk.Section, error)

	// DeleteSection удаляет секцию из хранилища
	DeleteSection(ctx context.Context, pos chunk.Position) error

	// SaveWorld сохраняет общую информацию о мире
	SaveWorld(ctx context.Context, info *WorldInfo) error

	// LoadWorld загружает общую информацию о мире
	LoadWorld(ctx context.Context) (*WorldInfo, error)

	// SavePlayerState сохраняет состояние игрока
	SavePlayerState(ctx context.Context, state *PlayerState) error

	// LoadPlayerState загружает состояние игрока, если существует
	LoadPlayerState(ctx context.Context, id string) (*PlayerState, error)

	// Close закрывает хранилище и освобождает ресурсы
	Close() error
}

// WorldInfo содержит общую информацию о игровом мире
type WorldInfo struct {
	Name       string            // Название мира
	Seed       int64             // Сид для генерации
	Version    string            // Версия формата сохранения
	CreatedAt  int64             // Время создания (Unix timestamp)
	LastSaveAt int64             // Время последнего сохранения (Unix timestamp)
	Properties map[string]string // Дополнительные свойства
}

// ErrSectionNotFound возвращается, когда секция не найдена в хранилище
type ErrSectionNotFound struct {
	Pos chunk.Position
}

func (e ErrSectionNotFound) Error() string {
	return fmt.Sprintf("секция [%d,%d,%d] не найдена в хранилище", e.Pos.X, e.Pos.Y, e.Pos.Z)
}

// PlayerState описывает сохраняемое состояние игрока
type PlayerState struct {
	ID       string      // Уникальный идентификатор игрока
	Name     string      // Имя игрока
	Skin     string      // Выбранный скин
	Position entity.Vec3 // Позиция в мире
	LastSeen int64       // Последнее время выхода (Unix)
}
