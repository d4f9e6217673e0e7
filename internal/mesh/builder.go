package mesh

import "github.com/annelo/go-voxel-engine/internal/chunk"

// NeighbourSet — до шести соседних секций; nil означает, что сосед
// ещё не загружен.
type NeighbourSet [chunk.DirectionCount]*chunk.Section

// Коэффициенты освещения по граням: верх ярче, низ темнее.
var faceLight = [chunk.DirectionCount]float32{
	0.6, 0.6, // -X +X
	0.4, 1.0, // -Y +Y
	0.8, 0.8, // -Z +Z
}

// faceCorners возвращает четыре угла грани d блока [x y z] в порядке обхода
// против часовой стрелки (если смотреть на грань снаружи).
func faceCorners(d chunk.Direction, x, y, z float32) [12]float32 {
	switch d {
	case chunk.DirLeft:
		return [12]float32{x, y, z + 1, x, y, z, x, y + 1, z, x, y + 1, z + 1}
	case chunk.DirRight:
		return [12]float32{x + 1, y, z, x + 1, y, z + 1, x + 1, y + 1, z + 1, x + 1, y + 1, z}
	case chunk.DirDown:
		return [12]float32{x, y, z, x, y, z + 1, x + 1, y, z + 1, x + 1, y, z}
	case chunk.DirUp:
		return [12]float32{x, y + 1, z + 1, x, y + 1, z, x + 1, y + 1, z, x + 1, y + 1, z + 1}
	case chunk.DirBack:
		return [12]float32{x + 1, y, z, x, y, z, x, y + 1, z, x + 1, y + 1, z}
	default: // DirFront
		return [12]float32{x, y, z + 1, x + 1, y, z + 1, x + 1, y + 1, z + 1, x, y + 1, z + 1}
	}
}

// adjacentBlock возвращает блок, прилегающий к грани d вокселя [x y z].
// Если соседняя ячейка лежит в незагруженном чанке, второй результат false:
// грань на границе подавляется, а не угадывается.
func adjacentBlock(s *chunk.Section, neighbours NeighbourSet, d chunk.Direction, x, y, z int32) (chunk.BlockID, bool) {
	off := d.Offset()
	nx, ny, nz := x+off.X, y+off.Y, z+off.Z

	if nx >= 0 && ny >= 0 && nz >= 0 && nx < chunk.Size && ny < chunk.Size && nz < chunk.Size {
		return s.GetBlock(nx, ny, nz), true
	}

	n := neighbours[d]
	if n == nil {
		return chunk.BlockAir, false
	}
	// Переносим координату в локальное пространство соседа
	return n.GetBlock(
		chunk.WorldToLocal(nx, ny, nz)), true
}

// Build собирает геометрию секции с учётом соседей. Сборка идемпотентна:
// одинаковое содержимое секции и соседей всегда даёт одинаковую геометрию.
// Build не изменяет флаг dirty — его снимает вызывающий конвейер после
// того, как результат принят.
func Build(s *chunk.Section, neighbours NeighbourSet) *ChunkMesh {
	m := &ChunkMesh{pos: s.Pos()}

	for y := int32(0); y < chunk.Size; y++ {
		for z := int32(0); z < chunk.Size; z++ {
			for x := int32(0); x < chunk.Size; x++ {
				id := s.GetBlock(x, y, z)
				if id.IsEmpty() {
					continue
				}
				for d := chunk.Direction(0); d < chunk.DirectionCount; d++ {
					adj, known := adjacentBlock(s, neighbours, d, x, y, z)
					if !known {
						// Сосед не загружен: не рисуем шов
						continue
					}
					if adj.IsOpaque() {
						continue
					}
					// Не рисуем грани между двумя блоками воды
					if id == chunk.BlockWater && adj == chunk.BlockWater {
						continue
					}
					m.addFace(faceCorners(d, float32(x), float32(y), float32(z)), faceLight[d], id)
				}
			}
		}
	}
	return m
}
