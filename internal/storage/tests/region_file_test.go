package storage_test

import (
	"errors"
	"testing"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/storage"
)

func testSection(pos chunk.Position) *chunk.Section {
	s := chunk.NewSection(pos)
	for x := int32(0); x < chunk.Size; x++ {
		for z := int32(0); z < chunk.Size; z++ {
			_ = s.SetBlock(x, 0, z, chunk.BlockStone)
		}
	}
	_ = s.SetBlock(3, 7, 9, chunk.BlockWood)
	return s
}

// TestRegionFile_SaveLoad проверяет, что после сохранения секции её можно корректно загрузить обратно.
func TestRegionFile_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	region, err := storage.NewRegionFile(tmpDir, chunk.Position{})
	if err != nil {
		t.Fatalf("cannot create region file: %v", err)
	}
	defer region.Close()

	sec := testSection(chunk.Position{X: 1, Y: 2, Z: 3})
	data := sec.Serialize()
	if err := region.SaveSection(sec.Pos(), data); err != nil {
		t.Fatalf("save section failed: %v", err)
	}

	// Закрываем и открываем заново
	if err := region.Close(); err != nil {
		t.Fatalf("close region failed: %v", err)
	}
	reopened, err := storage.NewRegionFile(tmpDir, chunk.Position{})
	if err != nil {
		t.Fatalf("reopen region failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.GetSection(sec.Pos())
	if err != nil {
		t.Fatalf("get section failed: %v", err)
	}
	if loaded.Pos() != sec.Pos() {
		t.Fatalf("position mismatch: want %v, got %v", sec.Pos(), loaded.Pos())
	}
	if got := loaded.GetBlock(3, 7, 9); got != chunk.BlockWood {
		t.Fatalf("block mismatch at (3,7,9): want %d, got %d", chunk.BlockWood, got)
	}
	if got := loaded.GetBlock(5, 0, 5); got != chunk.BlockStone {
		t.Fatalf("block mismatch at (5,0,5): want %d, got %d", chunk.BlockStone, got)
	}
}

// TestRegionFile_SectionNotFound проверяет корректную ошибку при попытке загрузить несуществующую секцию.
func TestRegionFile_SectionNotFound(t *testing.T) {
	region, err := storage.NewRegionFile(t.TempDir(), chunk.Position{})
	if err != nil {
		t.Fatalf("cannot create region file: %v", err)
	}
	defer region.Close()

	_, err = region.GetSection(chunk.Position{X: 4, Y: 4, Z: 4})
	var notFound storage.ErrSectionNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("want ErrSectionNotFound, got %v", err)
	}
}

// TestRegionFile_Overwrite проверяет перезапись секции на том же месте.
func TestRegionFile_Overwrite(t *testing.T) {
	region, err := storage.NewRegionFile(t.TempDir(), chunk.Position{})
	if err != nil {
		t.Fatalf("cannot create region file: %v", err)
	}
	defer region.Close()

	sec := testSection(chunk.Position{X: 2, Y: 0, Z: 2})
	data := sec.Serialize()
	if err := region.SaveSection(sec.Pos(), data); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	_ = sec.SetBlock(0, 15, 0, chunk.BlockSnow)
	data2 := sec.Serialize()
	if err := region.SaveSection(sec.Pos(), data2); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := region.GetSection(sec.Pos())
	if err != nil {
		t.Fatalf("get section failed: %v", err)
	}
	if got := loaded.GetBlock(0, 15, 0); got != chunk.BlockSnow {
		t.Fatalf("overwrite not visible: want %d, got %d", chunk.BlockSnow, got)
	}
}

// TestRegionFile_Delete проверяет удаление секции из индекса.
func TestRegionFile_Delete(t *testing.T) {
	region, err := storage.NewRegionFile(t.TempDir(), chunk.Position{})
	if err != nil {
		t.Fatalf("cannot create region file: %v", err)
	}
	defer region.Close()

	sec := testSection(chunk.Position{})
	data := sec.Serialize()
	if err := region.SaveSection(sec.Pos(), data); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := region.DeleteSection(sec.Pos()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	_, err = region.GetSection(sec.Pos())
	var notFound storage.ErrSectionNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("want ErrSectionNotFound after delete, got %v", err)
	}
}

// TestRegionFile_ForeignSection проверяет отказ сохранять чужую секцию.
func TestRegionFile_ForeignSection(t *testing.T) {
	region, err := storage.NewRegionFile(t.TempDir(), chunk.Position{})
	if err != nil {
		t.Fatalf("cannot create region file: %v", err)
	}
	defer region.Close()

	// Секция (8,0,0) принадлежит региону (1,0,0)
	sec := testSection(chunk.Position{X: storage.RegionSize})
	data := sec.Serialize()
	if err := region.SaveSection(sec.Pos(), data); err == nil {
		t.Fatal("expected error for section outside region bounds")
	}
}

func TestRegionForSection(t *testing.T) {
	cases := []struct {
		pos  chunk.Position
		want chunk.Position
	}{
		{chunk.Position{X: 0, Y: 0, Z: 0}, chunk.Position{X: 0, Y: 0, Z: 0}},
		{chunk.Position{X: 7, Y: 7, Z: 7}, chunk.Position{X: 0, Y: 0, Z: 0}},
		{chunk.Position{X: 8, Y: 0, Z: 0}, chunk.Position{X: 1, Y: 0, Z: 0}},
		{chunk.Position{X: -1, Y: 0, Z: -9}, chunk.Position{X: -1, Y: 0, Z: -2}},
	}
	for _, c := range cases {
		if got := storage.RegionForSection(c.pos); got != c.want {
			t.Errorf("RegionForSection(%v) = %v, want %v", c.pos, got, c.want)
		}
	}
}
