// Package world объединяет карту чанков, меши и сущности и выполняет
// пер-тиковое обновление: подгрузку и выгрузку чанков вокруг игрока и
// пересборку помеченных мешей.
package world

import (
	"sort"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/mesh"
)

// DefaultMeshBudget ограничивает число пересборок мешей за один тик.
const DefaultMeshBudget = 8

// Loader подгружает отсутствующие секции. Сервер генерирует или
// читает их из хранилища и возвращает сразу; клиент отправляет сетевой
// запрос и возвращает (nil, nil) — секция придёт позже через
// InsertSection.
type Loader interface {
	RequestSection(pos chunk.Position) (*chunk.Section, error)
}

// entry — одна пространственная запись: секция и необязательный меш.
// Меш существует только внутри записи с секцией, поэтому инвариант
// «меш подразумевает секцию» обеспечен конструкцией, а не соглашением.
type entry struct {
	section *chunk.Section
	mesh    *mesh.ChunkMesh
}

// World — агрегат состояния мира. Ровно один на экземпляр движка;
// мутируется только тик-потоком владельца, без внутренних блокировок.
type World struct {
	Entities *entity.Array

	chunks      *chunk.PositionMap[*entry]
	loader      Loader
	viewRadius  int32
	worldHeight int32
	meshBudget  int

	// onEvict вызывается перед выгрузкой секции (сервер сохраняет её)
	onEvict func(s *chunk.Section)
}

// New создаёт мир с данным загрузчиком и радиусом обзора в чанках.
func New(loader Loader, viewRadius, worldHeight int32, meshBudget int) *World {
	return &World{
		Entities:    entity.NewArray(),
		chunks:      chunk.NewPositionMap[*entry](),
		loader:      loader,
		viewRadius:  viewRadius,
		worldHeight: worldHeight,
		meshBudget:  meshBudget,
	}
}

// SetEvictHook устанавливает обработчик, вызываемый перед выгрузкой секции.
func (w *World) SetEvictHook(fn func(s *chunk.Section)) {
	w.onEvict = fn
}

// Section возвращает секцию по координате чанка.
func (w *World) Section(pos chunk.Position) (*chunk.Section, bool) {
	e, ok := w.chunks.Get(pos)
	if !ok || e.section == nil {
		return nil, false
	}
	return e.section, true
}

// Mesh возвращает меш по координате чанка.
func (w *World) Mesh(pos chunk.Position) (*mesh.ChunkMesh, bool) {
	e, ok := w.chunks.Get(pos)
	if !ok || e.mesh == nil {
		return nil, false
	}
	return e.mesh, true
}

// HasSection сообщает, загружена ли секция.
func (w *World) HasSection(pos chunk.Position) bool {
	_, ok := w.Section(pos)
	return ok
}

// SectionCount возвращает число загруженных секций.
func (w *World) SectionCount() int {
	return w.chunks.Len()
}

// ForEachSection вызывает fn для каждой загруженной секции.
func (w *World) ForEachSection(fn func(s *chunk.Section)) {
	w.chunks.ForEach(func(_ chunk.Position, e *entry) {
		fn(e.section)
	})
}

// ForEachMesh вызывает fn для каждого собранного меша.
func (w *World) ForEachMesh(fn func(m *mesh.ChunkMesh)) {
	w.chunks.ForEach(func(_ chunk.Position, e *entry) {
		if e.mesh != nil {
			fn(e.mesh)
		}
	})
}

// InsertSection добавляет или замещает секцию. Новая секция помечается
// на сборку меша; уже загруженные соседи тоже, поскольку их граничные
// грани подавлялись, пока этот чанк считался незагруженным.
func (w *World) InsertSection(s *chunk.Section) {
	pos := s.Pos()
	if e, ok := w.chunks.Get(pos); ok {
		e.section = s
		e.mesh = nil
	} else {
		w.chunks.Insert(pos, &entry{section: s})
	}
	s.MarkDirty()

	for d := chunk.Direction(0); d < chunk.DirectionCount; d++ {
		if n, ok := w.chunks.Get(pos.Neighbour(d)); ok {
			n.section.MarkDirty()
		}
	}
}

// RemoveChunk выгружает секцию вместе с производным мешем.
func (w *World) RemoveChunk(pos chunk.Position) bool {
	return w.chunks.Erase(pos)
}

// SetBlock изменяет блок по мировой координате. Возвращает false, если
// содержащая секция не загружена. Секция помечается изменённой; при
// правке у границы помечается и прилегающий сосед.
func (w *World) SetBlock(x, y, z int32, id chunk.BlockID) bool {
	pos := chunk.WorldToChunk(x, y, z)
	s, ok := w.Section(pos)
	if !ok {
		return false
	}
	lx, ly, lz := chunk.WorldToLocal(x, y, z)
	if err := s.SetBlock(lx, ly, lz, id); err != nil {
		return false
	}

	markNeighbour := func(d chunk.Direction) {
		if n, ok := w.Section(pos.Neighbour(d)); ok {
			n.MarkDirty()
		}
	}
	if lx == 0 {
		markNeighbour(chunk.DirLeft)
	}
	if lx == chunk.Size-1 {
		markNeighbour(chunk.DirRight)
	}
	if ly == 0 {
		markNeighbour(chunk.DirDown)
	}
	if ly == chunk.Size-1 {
		markNeighbour(chunk.DirUp)
	}
	if lz == 0 {
		markNeighbour(chunk.DirBack)
	}
	if lz == chunk.Size-1 {
		markNeighbour(chunk.DirFront)
	}
	return true
}

// GetBlock возвращает блок по мировой координате; воздух, если секция
// не загружена.
func (w *World) GetBlock(x, y, z int32) chunk.BlockID {
	s, ok := w.Section(chunk.WorldToChunk(x, y, z))
	if !ok {
		return chunk.BlockAir
	}
	return s.GetBlock(chunk.WorldToLocal(x, y, z))
}

// UpdateStats — итог одного вызова Update.
type UpdateStats struct {
	Loaded  int
	Evicted int
	Meshed  int
}

// Update выполняет один тик мира вокруг игрока: подгружает чанки в
// радиусе обзора, выгружает вышедшие из него, продвигает сущности и
// пересобирает ограниченную порцию помеченных мешей.
func (w *World) Update(player *entity.Entity, dt float32) UpdateStats {
	var stats UpdateStats
	center := chunk.WorldToChunk(
		int32(player.Position.X), int32(player.Position.Y), int32(player.Position.Z))

	// 1-2. Запрашиваем отсутствующие чанки в радиусе обзора
	for dx := -w.viewRadius; dx <= w.viewRadius; dx++ {
		for dz := -w.viewRadius; dz <= w.viewRadius; dz++ {
			for y := int32(0); y < w.worldHeight; y++ {
				pos := chunk.Position{X: center.X + dx, Y: y, Z: center.Z + dz}
				if w.chunks.Has(pos) {
					continue
				}
				s, err := w.loader.RequestSection(pos)
				if err != nil || s == nil {
					continue // загрузка в пути либо не удалась
				}
				w.InsertSection(s)
				stats.Loaded++
			}
		}
	}

	// 3. Выгружаем чанки за радиусом (метрика Чебышёва по X и Z)
	for _, pos := range w.chunks.Positions() {
		flat := chunk.Position{X: pos.X, Z: pos.Z}
		if flat.ChebyshevDistance(chunk.Position{X: center.X, Z: center.Z}) <= w.viewRadius {
			continue
		}
		if e, ok := w.chunks.Get(pos); ok && w.onEvict != nil {
			w.onEvict(e.section)
		}
		w.chunks.Erase(pos)
		stats.Evicted++
	}

	// 4. Продвигаем сущности
	w.Entities.Step(dt)

	// 5. Пересобираем помеченные меши, ближние к игроку первыми
	stats.Meshed = w.rebuildDirtyMeshes(center)
	return stats
}

// rebuildDirtyMeshes пересобирает не более meshBudget помеченных секций.
func (w *World) rebuildDirtyMeshes(center chunk.Position) int {
	if w.meshBudget <= 0 {
		return 0
	}

	var dirty []chunk.Position
	w.chunks.ForEach(func(pos chunk.Position, e *entry) {
		if e.section.IsDirty() {
			dirty = append(dirty, pos)
		}
	})
	sort.Slice(dirty, func(i, j int) bool {
		di := dirty[i].ChebyshevDistance(center)
		dj := dirty[j].ChebyshevDistance(center)
		if di != dj {
			return di < dj
		}
		a, b := dirty[i], dirty[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	rebuilt := 0
	for _, pos := range dirty {
		if rebuilt >= w.meshBudget {
			break
		}
		e, _ := w.chunks.Get(pos)

		var ns mesh.NeighbourSet
		for d := chunk.Direction(0); d < chunk.DirectionCount; d++ {
			if n, ok := w.Section(pos.Neighbour(d)); ok {
				ns[d] = n
			}
		}
		e.mesh = mesh.Build(e.section, ns)
		e.section.ClearDirty()
		rebuilt++
	}
	return rebuilt
}
