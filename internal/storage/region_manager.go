package storage

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
)

// Параметры кеша открытых регионов
const (
	// MaxOpenRegions ограничивает число одновременно открытых файлов регионов.
	MaxOpenRegions = 64

	// RegionCompactionInterval — период проверки регионов на компактацию.
	RegionCompactionInterval = 5 * time.Minute
)

// RegionManager управляет открытыми регионами и их кешем
type RegionManager struct {
	basePath     string
	regions      map[chunk.Position]*RegionFile
	regionsMutex sync.RWMutex
	lruList      *list.List
	lruMap       map[chunk.Position]*list.Element
	log          *zap.SugaredLogger

	// Фоновый воркер компактации
	stopChan chan struct{}
	wg       sync.WaitGroup

	dirtyRegions map[chunk.Position]bool // регионы с несохранёнными изменениями
}

// LRU элемент для отслеживания использования регионов
type regionLRUItem struct {
	region     chunk.Position
	lastAccess time.Time
}

// NewRegionManager создаёт новый менеджер регионов
func NewRegionManager(basePath string, log *zap.SugaredLogger) *RegionManager {
	rm := &RegionManager{
		basePath:     basePath,
		regions:      make(map[chunk.Position]*RegionFile),
		lruList:      list.New(),
		lruMap:       make(map[chunk.Position]*list.Element),
		log:          log,
		stopChan:     make(chan struct{}),
		dirtyRegions: make(map[chunk.Position]bool),
	}

	rm.wg.Add(1)
	go rm.compactionWorker()

	return rm
}

// GetRegion получает или открывает регион по координатам секции
func (rm *RegionManager) GetRegion(pos chunk.Position) (*RegionFile, error) {
	region := RegionForSection(pos)

	rm.regionsMutex.RLock()
	rf, exists := rm.regions[region]
	rm.regionsMutex.RUnlock()

	if exists {
		rm.regionsMutex.Lock()
		rm.updateLRU(region)
		rm.regionsMutex.Unlock()
		return rf, nil
	}

	return rm.openRegion(region)
}

// Открытие региона
func (rm *RegionManager) openRegion(region chunk.Position) (*RegionFile, error) {
	rm.regionsMutex.Lock()
	defer rm.regionsMutex.Unlock()

	// Проверяем ещё раз, не был ли регион открыт другой горутиной
	if rf, exists := rm.regions[region]; exists {
		rm.updateLRU(region)
		return rf, nil
	}

	// Лимит открытых файлов: закрываем наименее используемый регион
	if len(rm.regions) >= MaxOpenRegions {
		if err := rm.closeOldestRegion(); err != nil {
			return nil, err
		}
	}

	rf, err := NewRegionFile(rm.basePath, region)
	if err != nil {
		return nil, err
	}

	rm.regions[region] = rf
	rm.lruMap[region] = rm.lruList.PushFront(&regionLRUItem{
		region:     region,
		lastAccess: time.Now(),
	})
	return rf, nil
}

// Закрытие самого старого региона. Вызывается под regionsMutex.
func (rm *RegionManager) closeOldestRegion() error {
	// Ищем самый старый не-грязный регион
	var selected *list.Element
	for e := rm.lruList.Back(); e != nil; e = e.Prev() {
		item := e.Value.(*regionLRUItem)
		if rm.dirtyRegions[item.region] {
			continue
		}
		selected = e
		break
	}
	if selected == nil {
		return nil // все регионы грязные, не выгружаем
	}

	item := selected.Value.(*regionLRUItem)
	rf, exists := rm.regions[item.region]
	if !exists {
		rm.lruList.Remove(selected)
		delete(rm.lruMap, item.region)
		return nil
	}

	if err := rf.Sync(); err != nil {
		rm.log.Warnw("region sync failed", "region", item.region, "error", err)
	}
	if err := rf.Close(); err != nil {
		return err
	}

	delete(rm.regions, item.region)
	rm.lruList.Remove(selected)
	delete(rm.lruMap, item.region)

	rm.log.Debugw("closed idle region", "region", item.region)
	return nil
}

// Обновление позиции в LRU кеше. Вызывается под regionsMutex.
func (rm *RegionManager) updateLRU(region chunk.Position) {
	element, exists := rm.lruMap[region]
	if !exists {
		rm.lruMap[region] = rm.lruList.PushFront(&regionLRUItem{
			region:     region,
			lastAccess: time.Now(),
		})
		return
	}
	element.Value.(*regionLRUItem).lastAccess = time.Now()
	rm.lruList.MoveToFront(element)
}

// GetSection читает секцию из регионального хранилища
func (rm *RegionManager) GetSection(pos chunk.Position) (*chunk.Section, error) {
	rf, err := rm.GetRegion(pos)
	if err != nil {
		return nil, err
	}
	return rf.GetSection(pos)
}

// SaveSection сохраняет сериализованную секцию в региональное хранилище
func (rm *RegionManager) SaveSection(pos chunk.Position, data []byte) error {
	rf, err := rm.GetRegion(pos)
	if err != nil {
		return err
	}

	region := RegionForSection(pos)
	// Помечаем регион грязным на время записи
	rm.setDirty(region, true)
	err = rf.SaveSection(pos, data)
	rm.setDirty(region, false)
	return err
}

// DeleteSection удаляет секцию из регионального хранилища
func (rm *RegionManager) DeleteSection(pos chunk.Position) error {
	rf, err := rm.GetRegion(pos)
	if err != nil {
		return err
	}
	return rf.DeleteSection(pos)
}

// Close закрывает все открытые регионы
func (rm *RegionManager) Close() error {
	// Сначала останавливаем фоновый воркер, чтобы он не держал R-локи
	close(rm.stopChan)
	rm.wg.Wait()

	rm.regionsMutex.Lock()
	defer rm.regionsMutex.Unlock()

	var lastErr error
	for region, rf := range rm.regions {
		if err := rf.Close(); err != nil {
			rm.log.Errorw("region close failed", "region", region, "error", err)
			lastErr = err
		}
	}

	rm.regions = make(map[chunk.Position]*RegionFile)
	rm.lruList = list.New()
	rm.lruMap = make(map[chunk.Position]*list.Element)
	return lastErr
}

// compactionWorker периодически проверяет открытые файлы регионов и
// выполняет Compact() при необходимости.
func (rm *RegionManager) compactionWorker() {
	defer rm.wg.Done()

	ticker := time.NewTicker(RegionCompactionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.regionsMutex.RLock()
			candidates := make([]*RegionFile, 0, len(rm.regions))
			for _, rf := range rm.regions {
				if rf.NeedsCompaction() {
					candidates = append(candidates, rf)
				}
			}
			rm.regionsMutex.RUnlock()

			for _, rf := range candidates {
				if err := rf.Compact(); err != nil {
					rm.log.Errorw("region compaction failed",
						"file", rf.filename, "error", err)
				}
			}
		case <-rm.stopChan:
			return
		}
	}
}

// setDirty помечает регион «грязным» или «чистым».
func (rm *RegionManager) setDirty(region chunk.Position, dirty bool) {
	rm.regionsMutex.Lock()
	defer rm.regionsMutex.Unlock()
	if dirty {
		rm.dirtyRegions[region] = true
	} else {
		delete(rm.dirtyRegions, region)
	}
}
