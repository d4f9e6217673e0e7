// Package mesh собирает геометрию чанков из вокселей секций.
package mesh

import "github.com/annelo/go-voxel-engine/internal/chunk"

// ChunkMesh — производная геометрия одной секции.
// Никогда не является источником истины: существует только пока
// существует секция той же координаты.
type ChunkMesh struct {
	pos chunk.Position

	// Vertices хранит позиции вершин тройками float32
	Vertices []float32
	// Indices описывает треугольники по четыре вершины на грань
	Indices []uint32
	// Light — грубый коэффициент освещения на грань
	Light []float32
	// BlockIDs — тип блока для каждой грани (для выбора текстуры/цвета)
	BlockIDs []chunk.BlockID
}

// Pos возвращает координату секции-источника.
func (m *ChunkMesh) Pos() chunk.Position {
	return m.pos
}

// FaceCount возвращает количество видимых граней.
func (m *ChunkMesh) FaceCount() int {
	return len(m.BlockIDs)
}

// IsEmpty сообщает, пуста ли геометрия.
func (m *ChunkMesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// addFace добавляет одну грань (четыре вершины, два треугольника).
func (m *ChunkMesh) addFace(corners [12]float32, light float32, id chunk.BlockID) {
	base := uint32(len(m.Vertices) / 3)
	m.Vertices = append(m.Vertices, corners[:]...)
	m.Indices = append(m.Indices,
		base, base+1, base+2,
		base+2, base+3, base,
	)
	m.Light = append(m.Light, light)
	m.BlockIDs = append(m.BlockIDs, id)
}
