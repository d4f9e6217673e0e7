// Package protocol определяет сообщения синхронизации мира и их
// бинарное кодирование. Надёжный канал несёт управляющие сообщения и
// авторитетные изменения состояния; ненадёжный — частые обновления
// позиций с номерами последовательности, позволяющими отбрасывать
// устаревшие кадры.
package protocol

import "github.com/annelo/go-voxel-engine/internal/chunk"

// Version — версия протокола, проверяется при рукопожатии.
const Version uint8 = 1

// Type идентифицирует сообщение на проводе.
type Type uint8

const (
	TypeHandshake Type = iota + 1
	TypeHandshakeAck
	TypeChunkRequest
	TypeChunkData
	TypeBlockEdit
	TypeEntitySpawn
	TypeEntityDespawn
	TypeEntityPosition
	TypePlayerInput
	TypeHeartbeat
	TypeDisconnect
)

// Message — одно сообщение протокола.
type Message interface {
	MsgType() Type
}

// Vec3 — позиция/скорость на проводе.
type Vec3 struct {
	X, Y, Z float32
}

// Handshake — первое сообщение клиента (надёжный канал).
type Handshake struct {
	Version uint8
	Name    string
	Skin    string
}

// HandshakeAck — подтверждение сервера: идентичность игрока и параметры мира.
type HandshakeAck struct {
	EntityID    string
	Spawn       Vec3
	Seed        int64
	WorldHeight int32
	WorldSize   int32
}

// ChunkRequest — запрос клиентом секции чанка (надёжный канал).
type ChunkRequest struct {
	Pos chunk.Position
}

// ChunkData — сериализованная секция (надёжный канал).
type ChunkData struct {
	Payload []byte
}

// BlockEdit — авторитетное изменение одного блока (надёжный канал).
type BlockEdit struct {
	X, Y, Z int32
	Block   chunk.BlockID
}

// EntitySpawn — появление сущности (надёжный канал).
type EntitySpawn struct {
	EntityID string
	Kind     uint8
	Name     string
	Skin     string
	Pos      Vec3
}

// EntityDespawn — удаление сущности (надёжный канал).
type EntityDespawn struct {
	EntityID string
}

// EntityPosition — обновление позиции сущности (ненадёжный канал).
// Приёмник отбрасывает кадры с Seq не больше последнего принятого.
type EntityPosition struct {
	EntityID string
	Seq      uint32
	Pos      Vec3
	Vel      Vec3
}

// PlayerInput — ввод клиента: желаемая позиция/скорость игрока
// (ненадёжный канал, с номером последовательности).
type PlayerInput struct {
	Seq uint32
	Pos Vec3
	Vel Vec3
}

// Heartbeat — подтверждение живости сессии (ненадёжный канал).
type Heartbeat struct{}

// Disconnect — явное уведомление о разрыве (надёжный канал, любая сторона).
type Disconnect struct {
	Reason string
}

func (Handshake) MsgType() Type      { return TypeHandshake }
func (HandshakeAck) MsgType() Type   { return TypeHandshakeAck }
func (ChunkRequest) MsgType() Type   { return TypeChunkRequest }
func (ChunkData) MsgType() Type      { return TypeChunkData }
func (BlockEdit) MsgType() Type      { return TypeBlockEdit }
func (EntitySpawn) MsgType() Type    { return TypeEntitySpawn }
func (EntityDespawn) MsgType() Type  { return TypeEntityDespawn }
func (EntityPosition) MsgType() Type { return TypeEntityPosition }
func (PlayerInput) MsgType() Type    { return TypePlayerInput }
func (Heartbeat) MsgType() Type      { return TypeHeartbeat }
func (Disconnect) MsgType() Type     { return TypeDisconnect }
