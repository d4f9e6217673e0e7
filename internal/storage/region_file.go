package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/annelo/go-voxel-engine/internal/chunk"
)

// Геометрия и формат файлов регионов
const (
	// RegionSize — размер региона в секциях по каждой оси.
	RegionSize = 8

	// Число секций в одном регионе (8×8×8)
	sectionsPerRegion = RegionSize * RegionSize * RegionSize

	regionHeaderSize = 256
	indexEntrySize   = 16
	indexTableSize   = sectionsPerRegion * indexEntrySize

	regionMagic   = "VREG"
	regionVersion = 1

	// RegionCompactionGrowFactor — порог роста файла над объёмом «живых»
	// данных, после которого запускается компактация.
	RegionCompactionGrowFactor = 1.5
)

// RegionFile представляет файл региона, содержащий множество секций
type RegionFile struct {
	filename string
	file     *os.File
	region   chunk.Position
	mutex    sync.RWMutex

	// Кеш индексов для быстрого доступа
	index map[chunk.Position]sectionIndexEntry
}

// Запись в индексной таблице
type sectionIndexEntry struct {
	Offset      uint32
	Size        uint32
	LastModTime uint32
}

// RegionForSection возвращает координаты региона, содержащего секцию.
func RegionForSection(pos chunk.Position) chunk.Position {
	return chunk.Position{
		X: floorDivRegion(pos.X),
		Y: floorDivRegion(pos.Y),
		Z: floorDivRegion(pos.Z),
	}
}

func floorDivRegion(v int32) int32 {
	q := v / RegionSize
	if v%RegionSize != 0 && (v < 0) != (RegionSize < 0) {
		q--
	}
	return q
}

func regionFileName(region chunk.Position) string {
	return fmt.Sprintf("vregion_%d_%d_%d.dat", region.X, region.Y, region.Z)
}

// localIndex возвращает порядковый номер секции внутри региона.
func localIndex(region, pos chunk.Position) int {
	lx := pos.X - region.X*RegionSize
	ly := pos.Y - region.Y*RegionSize
	lz := pos.Z - region.Z*RegionSize
	if lx < 0 || lx >= RegionSize || ly < 0 || ly >= RegionSize || lz < 0 || lz >= RegionSize {
		return -1
	}
	return int((ly*RegionSize+lz)*RegionSize + lx)
}

// NewRegionFile создает новый файл региона или открывает существующий
func NewRegionFile(path string, region chunk.Position) (*RegionFile, error) {
	fullPath := filepath.Join(path, regionFileName(region))

	exists := false
	if _, err := os.Stat(fullPath); err == nil {
		exists = true
	}

	file, err := os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	r := &RegionFile{
		filename: fullPath,
		file:     file,
		region:   region,
		index:    make(map[chunk.Position]sectionIndexEntry),
	}

	if !exists {
		if err := r.initializeFile(); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		if err := r.loadIndexTable(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return r, nil
}

// Инициализация нового файла
func (r *RegionFile) initializeFile() error {
	header := make([]byte, regionHeaderSize)
	copy(header[0:4], []byte(regionMagic))
	binary.LittleEndian.PutUint32(header[4:8], regionVersion)
	binary.LittleEndian.PutUint32(header[8:12], sectionsPerRegion)
	now := uint64(time.Now().Unix())
	binary.LittleEndian.PutUint64(header[12:20], now) // время создания
	binary.LittleEndian.PutUint64(header[20:28], now) // последнее обновление
	binary.LittleEndian.PutUint32(header[28:32], uint32(r.region.X))
	binary.LittleEndian.PutUint32(header[32:36], uint32(r.region.Y))
	binary.LittleEndian.PutUint32(header[36:40], uint32(r.region.Z))

	if _, err := r.file.Write(header); err != nil {
		return err
	}

	// Нулевая индексная таблица: размер 0 означает «секция не сохранена»
	if _, err := r.file.Write(make([]byte, indexTableSize)); err != nil {
		return err
	}
	return r.file.Sync()
}

// Загрузка индексной таблицы в память
func (r *RegionFile) loadIndexTable() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	header := make([]byte, regionHeaderSize)
	if _, err := r.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("чтение заголовка региона: %w", err)
	}
	if string(header[0:4]) != regionMagic {
		return fmt.Errorf("файл %s не является файлом региона", r.filename)
	}

	table := make([]byte, indexTableSize)
	if _, err := r.file.ReadAt(table, regionHeaderSize); err != nil {
		return fmt.Errorf("чтение индексной таблицы: %w", err)
	}

	for i := 0; i < sectionsPerRegion; i++ {
		off := i * indexEntrySize
		entry := sectionIndexEntry{
			Offset:      binary.LittleEndian.Uint32(table[off : off+4]),
			Size:        binary.LittleEndian.Uint32(table[off+4 : off+8]),
			LastModTime: binary.LittleEndian.Uint32(table[off+8 : off+12]),
		}
		// Храним только реально сохранённые секции
		if entry.Size == 0 {
			continue
		}
		lx := int32(i % RegionSize)
		lz := int32(i / RegionSize % RegionSize)
		ly := int32(i / (RegionSize * RegionSize))
		pos := chunk.Position{
			X: r.region.X*RegionSize + lx,
			Y: r.region.Y*RegionSize + ly,
			Z: r.region.Z*RegionSize + lz,
		}
		r.index[pos] = entry
	}
	return nil
}

// GetSection читает сериализованную секцию из файла.
func (r *RegionFile) GetSection(pos chunk.Position) (*chunk.Section, error) {
	r.mutex.RLock()
	entry, exists := r.index[pos]
	r.mutex.RUnlock()

	if !exists || entry.Size == 0 {
		return nil, ErrSectionNotFound{Pos: pos}
	}

	r.mutex.Lock()
	data := make([]byte, entry.Size)
	_, err := r.file.ReadAt(data, int64(entry.Offset))
	r.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("чтение секции [%d,%d,%d]: %w", pos.X, pos.Y, pos.Z, err)
	}

	return chunk.DeserializeSection(data)
}

// SaveSection записывает сериализованную секцию в файл.
func (r *RegionFile) SaveSection(pos chunk.Position, data []byte) error {
	idx := localIndex(r.region, pos)
	if idx < 0 {
		return fmt.Errorf("секция [%d,%d,%d] не принадлежит региону [%d,%d,%d]",
			pos.X, pos.Y, pos.Z, r.region.X, r.region.Y, r.region.Z)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Если новые данные помещаются на старое место, перезаписываем его,
	// иначе дописываем в конец файла
	var offset uint32
	if entry, exists := r.index[pos]; exists && entry.Offset > 0 && uint32(len(data)) <= entry.Size {
		offset = entry.Offset
	} else {
		fi, err := r.file.Stat()
		if err != nil {
			return err
		}
		offset = uint32(fi.Size())
	}

	if _, err := r.file.WriteAt(data, int64(offset)); err != nil {
		return err
	}

	entry := sectionIndexEntry{
		Offset:      offset,
		Size:        uint32(len(data)),
		LastModTime: uint32(time.Now().Unix()),
	}
	r.index[pos] = entry

	if err := r.writeIndexEntry(idx, entry); err != nil {
		return err
	}
	return r.file.Sync()
}

// DeleteSection помечает секцию отсутствующей. Данные остаются в файле
// до ближайшей компактации.
func (r *RegionFile) DeleteSection(pos chunk.Position) error {
	idx := localIndex(r.region, pos)
	if idx < 0 {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.index[pos]; !exists {
		return nil
	}
	delete(r.index, pos)

	if err := r.writeIndexEntry(idx, sectionIndexEntry{}); err != nil {
		return err
	}
	return r.file.Sync()
}

func (r *RegionFile) writeIndexEntry(idx int, entry sectionIndexEntry) error {
	buf := make([]byte, indexEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], entry.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], entry.Size)
	binary.LittleEndian.PutUint32(buf[8:12], entry.LastModTime)
	_, err := r.file.WriteAt(buf, int64(regionHeaderSize+idx*indexEntrySize))
	return err
}

// Sections возвращает позиции всех сохранённых секций региона.
func (r *RegionFile) Sections() []chunk.Position {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]chunk.Position, 0, len(r.index))
	for pos := range r.index {
		out = append(out, pos)
	}
	return out
}

// Close закрывает файл региона
func (r *RegionFile) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.file.Close()
}

// Sync принудительно сбрасывает буферы файла на диск.
func (r *RegionFile) Sync() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.file.Sync()
}

// NeedsCompaction определяет, необходимо ли выполнять компактацию файла
// региона. Критерием является превышение фактического размера файла над
// объёмом «живых» данных более чем на RegionCompactionGrowFactor.
func (r *RegionFile) NeedsCompaction() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.needsCompactionLocked()
}

func (r *RegionFile) needsCompactionLocked() bool {
	fi, err := r.file.Stat()
	if err != nil {
		return false // безопасно: если не удалось получить размер, не компактим
	}

	usedSize := uint32(regionHeaderSize + indexTableSize)
	for _, entry := range r.index {
		usedSize += entry.Size
	}
	return float64(fi.Size()) > float64(usedSize)*RegionCompactionGrowFactor
}

// Compact переписывает все «живые» секции в новый временный файл, после
// чего атомарно заменяет им старый. Метод блокирует RegionFile на время
// операции, поэтому вызывается редко.
func (r *RegionFile) Compact() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.needsCompactionLocked() {
		return nil
	}

	tmpPath := r.filename + ".tmp"
	_ = os.Remove(tmpPath)

	tmpFile, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("создание tmp-файла для компактации: %w", err)
	}

	tmp := &RegionFile{
		filename: tmpPath,
		file:     tmpFile,
		region:   r.region,
		index:    make(map[chunk.Position]sectionIndexEntry),
	}
	if err := tmp.initializeFile(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("инициализация tmp-файла: %w", err)
	}

	// Переносим живые данные как есть, без пересериализации
	for pos, entry := range r.index {
		data := make([]byte, entry.Size)
		if _, err := r.file.ReadAt(data, int64(entry.Offset)); err != nil {
			tmpFile.Close()
			_ = os.Remove(tmpPath)
			return err
		}
		if err := tmp.SaveSection(pos, data); err != nil {
			tmpFile.Close()
			_ = os.Remove(tmpPath)
			return err
		}
		// Сохраняем исходное время модификации
		if te, ok := tmp.index[pos]; ok {
			te.LastModTime = entry.LastModTime
			tmp.index[pos] = te
			if err := tmp.writeIndexEntry(localIndex(tmp.region, pos), te); err != nil {
				tmpFile.Close()
				_ = os.Remove(tmpPath)
				return err
			}
		}
	}

	if err := tmp.file.Sync(); err != nil {
		tmp.file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := r.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.filename); err != nil {
		return err
	}

	newFile, err := os.OpenFile(r.filename, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	r.file = newFile
	r.index = tmp.index
	return nil
}
