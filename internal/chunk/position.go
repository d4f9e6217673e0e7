package chunk

// Size — размер чанка (количество блоков по одной стороне)
const Size int32 = 16

// Position — целочисленная координата чанка в мире.
// Сравнивается по значению и может использоваться как ключ карты.
type Position struct {
	X, Y, Z int32
}

// Direction перечисляет шесть соседних граней чанка.
type Direction int

const (
	DirLeft Direction = iota // -X
	DirRight
	DirDown // -Y
	DirUp
	DirBack // -Z
	DirFront

	DirectionCount = 6
)

// directionOffsets — единичные смещения для каждой из шести граней
var directionOffsets = [DirectionCount]Position{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// Offset возвращает единичное смещение координаты для данной грани.
func (d Direction) Offset() Position {
	return directionOffsets[d]
}

// Opposite возвращает противоположную грань.
func (d Direction) Opposite() Direction {
	return d ^ 1
}

// Add возвращает сумму двух координат.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Neighbour возвращает координату соседнего чанка в направлении d.
func (p Position) Neighbour(d Direction) Position {
	return p.Add(d.Offset())
}

// Neighbours возвращает координаты всех шести соседних чанков.
func (p Position) Neighbours() [DirectionCount]Position {
	var out [DirectionCount]Position
	for d := Direction(0); d < DirectionCount; d++ {
		out[d] = p.Neighbour(d)
	}
	return out
}

// ChebyshevDistance возвращает расстояние Чебышёва между двумя координатами.
func (p Position) ChebyshevDistance(o Position) int32 {
	dx := abs32(p.X - o.X)
	dy := abs32(p.Y - o.Y)
	dz := abs32(p.Z - o.Z)
	max := dx
	if dy > max {
		max = dy
	}
	if dz > max {
		max = dz
	}
	return max
}

// WorldToChunk переводит мировую координату блока в координату чанка.
func WorldToChunk(x, y, z int32) Position {
	return Position{X: floorDiv(x, Size), Y: floorDiv(y, Size), Z: floorDiv(z, Size)}
}

// WorldToLocal переводит мировую координату блока в локальную внутри чанка.
func WorldToLocal(x, y, z int32) (lx, ly, lz int32) {
	return floorMod(x, Size), floorMod(y, Size), floorMod(z, Size)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// floorDiv — целочисленное деление с округлением вниз (для отрицательных координат)
func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int32) int32 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
