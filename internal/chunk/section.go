package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// volume — количество блоков в одном чанке
const volume = Size * Size * Size

// Ошибки сериализации секции
var (
	ErrBadSectionPayload = errors.New("повреждённые данные секции")
	ErrLocalOutOfBounds  = errors.New("локальная координата вне границ чанка")
)

// Section хранит воксели одного чанка плюс флаг изменений.
// Секцией владеет World через PositionMap; мутации выполняет только
// тик-поток владеющего движка.
type Section struct {
	pos    Position
	blocks [volume]BlockID
	dirty  bool
}

// NewSection создаёт пустую (воздушную) секцию для координаты pos.
func NewSection(pos Position) *Section {
	return &Section{pos: pos}
}

// Pos возвращает координату чанка секции.
func (s *Section) Pos() Position {
	return s.pos
}

func blockIndex(x, y, z int32) (int32, bool) {
	if x < 0 || y < 0 || z < 0 || x >= Size || y >= Size || z >= Size {
		return 0, false
	}
	return (y*Size+z)*Size + x, true
}

// GetBlock возвращает блок по локальной координате.
// Координаты вне границ считаются воздухом.
func (s *Section) GetBlock(x, y, z int32) BlockID {
	idx, ok := blockIndex(x, y, z)
	if !ok {
		return BlockAir
	}
	return s.blocks[idx]
}

// SetBlock устанавливает блок и помечает секцию изменённой.
func (s *Section) SetBlock(x, y, z int32, id BlockID) error {
	idx, ok := blockIndex(x, y, z)
	if !ok {
		return fmt.Errorf("%w: [%d %d %d]", ErrLocalOutOfBounds, x, y, z)
	}
	s.blocks[idx] = id
	s.dirty = true
	return nil
}

// IsDirty сообщает, изменялась ли секция с момента последней сборки меша.
func (s *Section) IsDirty() bool {
	return s.dirty
}

// MarkDirty помечает секцию изменённой (например, при загрузке соседа).
func (s *Section) MarkDirty() {
	s.dirty = true
}

// ClearDirty снимает флаг изменений. Вызывается только конвейером мешей
// после успешной сборки, учитывающей текущее содержимое.
func (s *Section) ClearDirty() {
	s.dirty = false
}

// Сериализация использует zstd: заголовок из координаты чанка (little-endian)
// плюс сжатый массив блоков. Round-trip обязан быть точным.
var (
	sectionEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	sectionDecoder, _ = zstd.NewReader(nil)
)

// Serialize кодирует секцию для передачи по сети или записи на диск.
func (s *Section) Serialize() []byte {
	header := make([]byte, 12, 12+volume/4)
	binary.LittleEndian.PutUint32(header[0:4], uint32(s.pos.X))
	binary.LittleEndian.PutUint32(header[4:8], uint32(s.pos.Y))
	binary.LittleEndian.PutUint32(header[8:12], uint32(s.pos.Z))

	raw := make([]byte, volume)
	for i, b := range s.blocks {
		raw[i] = byte(b)
	}
	return sectionEncoder.EncodeAll(raw, header)
}

// DeserializeSection восстанавливает секцию из сериализованного представления.
func DeserializeSection(data []byte) (*Section, error) {
	if len(data) < 12 {
		return nil, ErrBadSectionPayload
	}
	pos := Position{
		X: int32(binary.LittleEndian.Uint32(data[0:4])),
		Y: int32(binary.LittleEndian.Uint32(data[4:8])),
		Z: int32(binary.LittleEndian.Uint32(data[8:12])),
	}
	raw, err := sectionDecoder.DecodeAll(data[12:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSectionPayload, err)
	}
	if len(raw) != int(volume) {
		return nil, ErrBadSectionPayload
	}
	s := NewSection(pos)
	for i, b := range raw {
		s.blocks[i] = BlockID(b)
	}
	return s, nil
}

// IsEmpty сообщает, состоит ли секция целиком из воздуха.
func (s *Section) IsEmpty() bool {
	for _, b := range s.blocks {
		if b != BlockAir {
			return false
		}
	}
	return true
}
