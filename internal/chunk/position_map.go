package chunk

// PositionMap — обобщённый пространственный индекс: координата чанка -> значение.
// Не синхронизирован внутри: каждым экземпляром владеет ровно один
// тик-поток движка, и только он выполняет мутации.
type PositionMap[T any] struct {
	entries map[Position]T
}

// NewPositionMap создаёт пустую карту.
func NewPositionMap[T any]() *PositionMap[T] {
	return &PositionMap[T]{entries: make(map[Position]T)}
}

// Get возвращает значение по координате и флаг наличия.
func (m *PositionMap[T]) Get(pos Position) (T, bool) {
	v, ok := m.entries[pos]
	return v, ok
}

// Insert добавляет значение, перезаписывая существующее.
func (m *PositionMap[T]) Insert(pos Position, value T) {
	m.entries[pos] = value
}

// Erase удаляет запись. Возвращает true, если запись существовала.
func (m *PositionMap[T]) Erase(pos Position) bool {
	if _, ok := m.entries[pos]; !ok {
		return false
	}
	delete(m.entries, pos)
	return true
}

// Has сообщает, присутствует ли координата в карте.
func (m *PositionMap[T]) Has(pos Position) bool {
	_, ok := m.entries[pos]
	return ok
}

// Len возвращает количество записей.
func (m *PositionMap[T]) Len() int {
	return len(m.entries)
}

// ForEach вызывает fn для каждой записи карты.
// Порядок обхода не определён. Удалять записи внутри fn нельзя.
func (m *PositionMap[T]) ForEach(fn func(pos Position, value T)) {
	for pos, v := range m.entries {
		fn(pos, v)
	}
}

// Neighbour возвращает значение у соседнего чанка в направлении d.
func (m *PositionMap[T]) Neighbour(pos Position, d Direction) (T, bool) {
	return m.Get(pos.Neighbour(d))
}

// Positions возвращает срез всех координат карты.
func (m *PositionMap[T]) Positions() []Position {
	out := make([]Position, 0, len(m.entries))
	for pos := range m.entries {
		out = append(out, pos)
	}
	return out
}
