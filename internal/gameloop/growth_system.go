package gameloop

import (
	"context"
	"math/rand"
	"time"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/protocol"
)

// Параметры случайных тиков растительности
const (
	growthEvery         = 20 // раз в секунду при 20 TPS
	maxSectionsPerTick  = 16 // бюджет секций за один проход
	randomTicksPerChunk = 3  // случайных клеток на секцию
	tallGrassChance     = 24 // 1 из N проросших клеток
	flowerChance        = 160
)

// GrowthSystem проводит случайные тики растительности в загруженных
// секциях: трава прорастает в высокую траву, изредка появляются цветы.
// Каждая правка применяется к миру и рассылается клиентам.
type GrowthSystem struct {
	deps  Dependencies
	rng   *rand.Rand
	ticks int64
}

func NewGrowthSystem(seed int64) *GrowthSystem {
	return &GrowthSystem{rng: rand.New(rand.NewSource(seed))}
}

func (g *GrowthSystem) Name() string { return "growth" }

func (g *GrowthSystem) Init(deps Dependencies) error {
	g.deps = deps
	return nil
}

func (g *GrowthSystem) Tick(ctx context.Context, dt time.Duration) {
	g.ticks++
	if g.ticks%growthEvery != 0 {
		return
	}

	visited := 0
	g.deps.World.ForEachSection(func(s *chunk.Section) {
		if visited >= maxSectionsPerTick {
			return
		}
		visited++
		for i := 0; i < randomTicksPerChunk; i++ {
			g.randomTick(s)
		}
	})
}

// randomTick разыгрывает одну случайную клетку секции.
func (g *GrowthSystem) randomTick(s *chunk.Section) {
	lx := int32(g.rng.Intn(int(chunk.Size)))
	ly := int32(g.rng.Intn(int(chunk.Size)))
	lz := int32(g.rng.Intn(int(chunk.Size)))

	if s.GetBlock(lx, ly, lz) != chunk.BlockGrass {
		return
	}

	pos := s.Pos()
	wx := pos.X*chunk.Size + lx
	wy := pos.Y*chunk.Size + ly
	wz := pos.Z*chunk.Size + lz

	// Над травой должен быть воздух
	if g.deps.World.GetBlock(wx, wy+1, wz) != chunk.BlockAir {
		return
	}

	var sprout chunk.BlockID
	switch {
	case g.rng.Intn(flowerChance) == 0:
		sprout = chunk.BlockFlower
	case g.rng.Intn(tallGrassChance) == 0:
		sprout = chunk.BlockTallGrass
	default:
		return
	}

	if !g.deps.World.SetBlock(wx, wy+1, wz, sprout) {
		return
	}
	if g.deps.Broadcast != nil {
		g.deps.Broadcast(&protocol.BlockEdit{X: wx, Y: wy + 1, Z: wz, Block: sprout}, true)
	}
}
