package chunk_test

import (
	"testing"

	"github.com/annelo/go-voxel-engine/internal/chunk"
)

func TestPositionMap_InsertGetErase(t *testing.T) {
	m := chunk.NewPositionMap[int]()

	pos := chunk.Position{X: 3, Y: -1, Z: 7}
	m.Insert(pos, 42)

	v, ok := m.Get(pos)
	if !ok || v != 42 {
		t.Fatalf("get after insert: got (%d, %v), want (42, true)", v, ok)
	}

	// Insert перезаписывает существующее значение
	m.Insert(pos, 7)
	v, _ = m.Get(pos)
	if v != 7 {
		t.Fatalf("get after overwrite: got %d, want 7", v)
	}

	if !m.Erase(pos) {
		t.Fatalf("erase of present entry returned false")
	}
	if _, ok := m.Get(pos); ok {
		t.Fatalf("get after erase should be empty")
	}
	if m.Erase(pos) {
		t.Fatalf("second erase should return false")
	}
}

func TestPositionMap_Neighbour(t *testing.T) {
	m := chunk.NewPositionMap[string]()
	center := chunk.Position{X: 0, Y: 0, Z: 0}
	m.Insert(center.Neighbour(chunk.DirUp), "up")

	if v, ok := m.Neighbour(center, chunk.DirUp); !ok || v != "up" {
		t.Fatalf("neighbour lookup failed: got (%q, %v)", v, ok)
	}
	if _, ok := m.Neighbour(center, chunk.DirDown); ok {
		t.Fatalf("missing neighbour reported as present")
	}
}

func TestPositionMap_ForEach(t *testing.T) {
	m := chunk.NewPositionMap[int]()
	for i := int32(0); i < 5; i++ {
		m.Insert(chunk.Position{X: i}, int(i))
	}

	sum := 0
	m.ForEach(func(pos chunk.Position, v int) { sum += v })
	if sum != 10 {
		t.Fatalf("foreach sum: got %d, want 10", sum)
	}
	if m.Len() != 5 {
		t.Fatalf("len: got %d, want 5", m.Len())
	}
}

func TestPosition_Chebyshev(t *testing.T) {
	a := chunk.Position{X: 0, Y: 0, Z: 0}
	b := chunk.Position{X: 2, Y: -3, Z: 1}
	if d := a.ChebyshevDistance(b); d != 3 {
		t.Fatalf("chebyshev: got %d, want 3", d)
	}
}

func TestWorldToChunk_Negative(t *testing.T) {
	// Отрицательные мировые координаты должны округляться вниз
	pos := chunk.WorldToChunk(-1, 0, 16)
	want := chunk.Position{X: -1, Y: 0, Z: 1}
	if pos != want {
		t.Fatalf("world to chunk: got %+v, want %+v", pos, want)
	}

	lx, ly, lz := chunk.WorldToLocal(-1, 0, 16)
	if lx != 15 || ly != 0 || lz != 0 {
		t.Fatalf("world to local: got [%d %d %d], want [15 0 0]", lx, ly, lz)
	}
}
