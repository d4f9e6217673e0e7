package chunk

// BlockID — идентификатор типа блока.
type BlockID uint8

// Типы блоков
const (
	BlockAir BlockID = iota
	BlockGrass
	BlockDirt
	BlockStone
	BlockWater
	BlockSand
	BlockWood
	BlockLeaves
	BlockSnow
	BlockTallGrass
	BlockFlower
)

// IsOpaque сообщает, закрывает ли блок соседнюю грань полностью.
// Прозрачные блоки не подавляют генерацию граней у соседей.
func (b BlockID) IsOpaque() bool {
	switch b {
	case BlockAir, BlockWater, BlockTallGrass, BlockFlower:
		return false
	default:
		return true
	}
}

// IsEmpty сообщает, является ли блок воздухом.
func (b BlockID) IsEmpty() bool {
	return b == BlockAir
}
