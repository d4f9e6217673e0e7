package worldgen

import "github.com/annelo/go-voxel-engine/internal/chunk"

// seaLevel — уровень воды в мировых координатах блоков.
const seaLevel int32 = 24

// Generator детерминированно строит секции чанков по сиду мира.
// Одинаковый сид и координата всегда дают одинаковое содержимое.
type Generator struct {
	seed        int64
	biome       *BiomeNoise
	worldHeight int32 // высота мира в секциях
}

// NewGenerator создаёт генератор ландшафта.
func NewGenerator(seed int64, worldHeight int32) *Generator {
	return &Generator{
		seed:        seed,
		biome:       NewBiomeNoise(seed),
		worldHeight: worldHeight,
	}
}

// Seed возвращает сид мира.
func (g *Generator) Seed() int64 {
	return g.seed
}

// WorldHeight возвращает высоту мира в секциях.
func (g *Generator) WorldHeight() int32 {
	return g.worldHeight
}

// SurfaceHeight возвращает мировую Y поверхности колонки (x, z).
// Используется для выбора точек появления.
func (g *Generator) SurfaceHeight(x, z int32) int32 {
	return g.columnHeight(x, z)
}

// columnHeight возвращает высоту поверхности для мировой колонки (x, z).
func (g *Generator) columnHeight(x, z int32) int32 {
	h, _, _ := g.biome.GetBiomeData(float64(x), float64(z))
	maxY := g.worldHeight*chunk.Size - 1
	height := int32(h * float64(maxY))
	if height < 1 {
		height = 1
	}
	return height
}

// surfaceBlock выбирает верхний блок колонки по биому.
func (g *Generator) surfaceBlock(x, z int32, height float64) chunk.BlockID {
	_, moisture, temperature := g.biome.GetBiomeData(float64(x), float64(z))
	switch GetBiomeType(height, moisture, temperature) {
	case BiomeOcean:
		return chunk.BlockSand
	case BiomeBeach, BiomeDesert:
		return chunk.BlockSand
	case BiomeSnowland:
		return chunk.BlockSnow
	case BiomeMountain:
		return chunk.BlockStone
	case BiomeTaiga:
		return chunk.BlockGrass
	default:
		return chunk.BlockGrass
	}
}

// GenerateSection строит секцию для координаты pos. Секции выше
// worldHeight и ниже нуля пусты.
func (g *Generator) GenerateSection(pos chunk.Position) *chunk.Section {
	s := chunk.NewSection(pos)
	if pos.Y < 0 || pos.Y >= g.worldHeight {
		return s
	}

	baseY := pos.Y * chunk.Size
	for lx := int32(0); lx < chunk.Size; lx++ {
		for lz := int32(0); lz < chunk.Size; lz++ {
			wx := pos.X*chunk.Size + lx
			wz := pos.Z*chunk.Size + lz
			colHeight := g.columnHeight(wx, wz)
			hNorm, _, _ := g.biome.GetBiomeData(float64(wx), float64(wz))
			surface := g.surfaceBlock(wx, wz, hNorm)

			for ly := int32(0); ly < chunk.Size; ly++ {
				wy := baseY + ly

				var id chunk.BlockID
				switch {
				case wy > colHeight && wy <= seaLevel:
					id = chunk.BlockWater
				case wy > colHeight:
					continue // воздух
				case wy == colHeight:
					id = surface
				case wy >= colHeight-3:
					id = chunk.BlockDirt
				default:
					id = chunk.BlockStone
				}
				// Локальные координаты заведомо в границах
				_ = s.SetBlock(lx, ly, lz, id)
			}
		}
	}
	s.ClearDirty() // свежесгенерированная секция считается чистой до первой правки
	return s
}
