package storage_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/storage"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// TestBinaryStorage_SaveLoad проверяет базовый цикл сохранения/загрузки секции
// с переоткрытием хранилища.
func TestBinaryStorage_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	bs, err := storage.NewBinaryStorage(tmpDir, "world1", 123, testLogger())
	if err != nil {
		t.Fatalf("unable to create binary storage: %v", err)
	}

	sec := testSection(chunk.Position{X: -3, Y: 1, Z: 12})
	if err := bs.SaveSection(ctx, sec); err != nil {
		t.Fatalf("save section failed: %v", err)
	}

	// Close сбрасывает очередь сохранения на диск
	if err := bs.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	bs2, err := storage.NewBinaryStorage(tmpDir, "world1", 123, testLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer bs2.Close()

	loaded, err := bs2.LoadSection(ctx, sec.Pos())
	if err != nil {
		t.Fatalf("load section failed: %v", err)
	}
	if got := loaded.GetBlock(3, 7, 9); got != chunk.BlockWood {
		t.Fatalf("block mismatch: want %d, got %d", chunk.BlockWood, got)
	}
}

// TestBinaryStorage_WorldInfo проверяет, что информация о мире переживает переоткрытие.
func TestBinaryStorage_WorldInfo(t *testing.T) {
	tmpDir := t.TempDir()

	bs, err := storage.NewBinaryStorage(tmpDir, "alpha", 777, testLogger())
	if err != nil {
		t.Fatalf("unable to create binary storage: %v", err)
	}
	if err := bs.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Имя и сид при переоткрытии берутся из сохранённого файла, а не из аргументов
	bs2, err := storage.NewBinaryStorage(tmpDir, "ignored", 0, testLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer bs2.Close()

	info := bs2.WorldInfo()
	if info.Name != "alpha" {
		t.Fatalf("world name mismatch: want alpha, got %s", info.Name)
	}
	if info.Seed != 777 {
		t.Fatalf("world seed mismatch: want 777, got %d", info.Seed)
	}
}

// TestBinaryStorage_PlayerState проверяет сохранение и загрузку состояния игрока.
func TestBinaryStorage_PlayerState(t *testing.T) {
	ctx := context.Background()

	bs, err := storage.NewBinaryStorage(t.TempDir(), "world1", 1, testLogger())
	if err != nil {
		t.Fatalf("unable to create binary storage: %v", err)
	}
	defer bs.Close()

	state := &storage.PlayerState{
		ID:       "p-42",
		Name:     "steve",
		Skin:     "default",
		Position: entity.Vec3{X: 10, Y: 65, Z: -4},
		LastSeen: 1700000000,
	}
	if err := bs.SavePlayerState(ctx, state); err != nil {
		t.Fatalf("save player state failed: %v", err)
	}

	loaded, err := bs.LoadPlayerState(ctx, "p-42")
	if err != nil {
		t.Fatalf("load player state failed: %v", err)
	}
	if loaded.Name != "steve" || loaded.Position != state.Position {
		t.Fatalf("player state mismatch: %+v", loaded)
	}

	if _, err := bs.LoadPlayerState(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown player id")
	}
}
