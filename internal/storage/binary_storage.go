package storage

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
)

const saveQueueSize = 256

// Сериализованная секция, ожидающая записи на диск
type pendingSave struct {
	pos  chunk.Position
	data []byte
}

// BinaryStorage реализует интерфейс WorldStorage поверх файлов регионов
type BinaryStorage struct {
	basePath  string
	worldInfo *WorldInfo
	regions   *RegionManager
	log       *zap.SugaredLogger

	// Канал для сохранения секций в фоне
	saveQueue chan pendingSave

	stopChan chan struct{}
	wg       sync.WaitGroup

	// директория игроков
	playersPath string

	closeOnce sync.Once
}

// NewBinaryStorage создает новое бинарное хранилище
func NewBinaryStorage(basePath, worldName string, seed int64, log *zap.SugaredLogger) (*BinaryStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища: %w", err)
	}

	regionsPath := filepath.Join(basePath, "regions")
	if err := os.MkdirAll(regionsPath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию регионов: %w", err)
	}

	playersPath := filepath.Join(basePath, "players")
	if err := os.MkdirAll(playersPath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию игроков: %w", err)
	}

	s := &BinaryStorage{
		basePath:    basePath,
		regions:     NewRegionManager(regionsPath, log),
		log:         log,
		saveQueue:   make(chan pendingSave, saveQueueSize),
		stopChan:    make(chan struct{}),
		playersPath: playersPath,
	}

	// Загружаем или создаем информацию о мире
	info, err := s.LoadWorld(context.Background())
	if err != nil {
		now := time.Now().Unix()
		info = &WorldInfo{
			Name:       worldName,
			Seed:       seed,
			Version:    "vregion-1",
			CreatedAt:  now,
			LastSaveAt: now,
			Properties: make(map[string]string),
		}
		if err := s.SaveWorld(context.Background(), info); err != nil {
			s.regions.Close()
			return nil, fmt.Errorf("ошибка при сохранении информации о мире: %w", err)
		}
	}
	s.worldInfo = info

	s.wg.Add(1)
	go s.saveWorker()

	return s, nil
}

// WorldInfo возвращает загруженную информацию о мире.
func (s *BinaryStorage) WorldInfo() *WorldInfo {
	return s.worldInfo
}

// SaveSection сериализует секцию и ставит её в очередь на запись.
// Сериализация выполняется сразу, чтобы дальнейшие правки секции не
// попали в уже запланированное сохранение.
func (s *BinaryStorage) SaveSection(ctx context.Context, sec *chunk.Section) error {
	data := sec.Serialize()

	select {
	case s.saveQueue <- pendingSave{pos: sec.Pos(), data: data}:
		return nil
	default:
		// Очередь заполнена: пишем синхронно, чтобы не потерять данные
		return s.regions.SaveSection(sec.Pos(), data)
	}
}

// LoadSection загружает секцию из регионального хранилища
func (s *BinaryStorage) LoadSection(ctx context.Context, pos chunk.Position) (*chunk.Section, error) {
	return s.regions.GetSection(pos)
}

// DeleteSection удаляет секцию из хранилища
func (s *BinaryStorage) DeleteSection(ctx context.Context, pos chunk.Position) error {
	return s.regions.DeleteSection(pos)
}

// SaveWorld сохраняет информацию о мире
func (s *BinaryStorage) SaveWorld(ctx context.Context, info *WorldInfo) error {
	info.LastSaveAt = time.Now().Unix()
	return saveJSONFile(filepath.Join(s.basePath, "world_info.json"), info)
}

// LoadWorld загружает информацию о мире
func (s *BinaryStorage) LoadWorld(ctx context.Context) (*WorldInfo, error) {
	infoPath := filepath.Join(s.basePath, "world_info.json")
	if _, err := os.Stat(infoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("информация о мире не найдена")
	}

	var info WorldInfo
	if err := loadJSONFile(infoPath, &info); err != nil {
		return nil, fmt.Errorf("ошибка при загрузке информации о мире: %w", err)
	}
	return &info, nil
}

// Close закрывает хранилище и освобождает ресурсы
func (s *BinaryStorage) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()

		// Дописываем всё, что осталось в очереди
		for {
			select {
			case p := <-s.saveQueue:
				if err := s.regions.SaveSection(p.pos, p.data); err != nil {
					s.log.Errorw("section save failed on close", "pos", p.pos, "error", err)
				}
			default:
				s.worldInfo.LastSaveAt = time.Now().Unix()
				if err := s.SaveWorld(context.Background(), s.worldInfo); err != nil {
					s.log.Errorw("world info save failed on close", "error", err)
				}
				retErr = s.regions.Close()
				return
			}
		}
	})
	return retErr
}

// saveWorker обрабатывает очередь сохранения
func (s *BinaryStorage) saveWorker() {
	defer s.wg.Done()
	for {
		select {
		case p := <-s.saveQueue:
			if err := s.regions.SaveSection(p.pos, p.data); err != nil {
				s.log.Errorw("section save failed", "pos", p.pos, "error", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// Вспомогательные функции для работы с JSON
func saveJSONFile(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, jsonData, 0644)
}

func loadJSONFile(path string, data interface{}) error {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(fileData, data)
}

// SavePlayerState сохраняет состояние игрока в бинарном (gob) виде
func (s *BinaryStorage) SavePlayerState(ctx context.Context, state *PlayerState) error {
	if state == nil {
		return nil
	}
	path := filepath.Join(s.playersPath, fmt.Sprintf("player_%s.dat", state.ID))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(state)
}

// LoadPlayerState загружает состояние игрока; ошибка, если файла нет
func (s *BinaryStorage) LoadPlayerState(ctx context.Context, id string) (*PlayerState, error) {
	path := filepath.Join(s.playersPath, fmt.Sprintf("player_%s.dat", id))
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ps PlayerState
	if err := gob.NewDecoder(file).Decode(&ps); err != nil {
		return nil, err
	}
	return &ps, nil
}
