package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/annelo/go-voxel-engine/internal/chunk"
)

// Ошибки кодека
var (
	ErrTruncated   = errors.New("усечённое сообщение")
	ErrUnknownType = errors.New("неизвестный тип сообщения")
)

// writer накапливает поля сообщения в little-endian представлении.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) i64(v int64)  { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) str(s string) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) vec3(v Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *writer) pos(p chunk.Position) {
	w.i32(p.X)
	w.i32(p.Y)
	w.i32(p.Z)
}

// reader последовательно разбирает поля сообщения.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) str() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(b))
	return string(r.take(n))
}

func (r *reader) bytes() []byte {
	n := int(r.u32())
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) vec3() Vec3 {
	return Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

func (r *reader) pos() chunk.Position {
	return chunk.Position{X: r.i32(), Y: r.i32(), Z: r.i32()}
}

// Encode кодирует сообщение в кадр: байт типа плюс поля.
func Encode(m Message) []byte {
	w := &writer{buf: make([]byte, 0, 32)}
	w.u8(uint8(m.MsgType()))

	switch msg := m.(type) {
	case *Handshake:
		w.u8(msg.Version)
		w.str(msg.Name)
		w.str(msg.Skin)
	case *HandshakeAck:
		w.str(msg.EntityID)
		w.vec3(msg.Spawn)
		w.i64(msg.Seed)
		w.i32(msg.WorldHeight)
		w.i32(msg.WorldSize)
	case *ChunkRequest:
		w.pos(msg.Pos)
	case *ChunkData:
		w.bytes(msg.Payload)
	case *BlockEdit:
		w.i32(msg.X)
		w.i32(msg.Y)
		w.i32(msg.Z)
		w.u8(uint8(msg.Block))
	case *EntitySpawn:
		w.str(msg.EntityID)
		w.u8(msg.Kind)
		w.str(msg.Name)
		w.str(msg.Skin)
		w.vec3(msg.Pos)
	case *EntityDespawn:
		w.str(msg.EntityID)
	case *EntityPosition:
		w.str(msg.EntityID)
		w.u32(msg.Seq)
		w.vec3(msg.Pos)
		w.vec3(msg.Vel)
	case *PlayerInput:
		w.u32(msg.Seq)
		w.vec3(msg.Pos)
		w.vec3(msg.Vel)
	case *Heartbeat:
	case *Disconnect:
		w.str(msg.Reason)
	}
	return w.buf
}

// Decode разбирает кадр обратно в сообщение.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrTruncated
	}
	r := &reader{buf: data, off: 1}

	var m Message
	switch Type(data[0]) {
	case TypeHandshake:
		m = &Handshake{Version: r.u8(), Name: r.str(), Skin: r.str()}
	case TypeHandshakeAck:
		m = &HandshakeAck{
			EntityID:    r.str(),
			Spawn:       r.vec3(),
			Seed:        r.i64(),
			WorldHeight: r.i32(),
			WorldSize:   r.i32(),
		}
	case TypeChunkRequest:
		m = &ChunkRequest{Pos: r.pos()}
	case TypeChunkData:
		m = &ChunkData{Payload: r.bytes()}
	case TypeBlockEdit:
		m = &BlockEdit{X: r.i32(), Y: r.i32(), Z: r.i32(), Block: chunk.BlockID(r.u8())}
	case TypeEntitySpawn:
		m = &EntitySpawn{EntityID: r.str(), Kind: r.u8(), Name: r.str(), Skin: r.str(), Pos: r.vec3()}
	case TypeEntityDespawn:
		m = &EntityDespawn{EntityID: r.str()}
	case TypeEntityPosition:
		m = &EntityPosition{EntityID: r.str(), Seq: r.u32(), Pos: r.vec3(), Vel: r.vec3()}
	case TypePlayerInput:
		m = &PlayerInput{Seq: r.u32(), Pos: r.vec3(), Vel: r.vec3()}
	case TypeHeartbeat:
		m = &Heartbeat{}
	case TypeDisconnect:
		m = &Disconnect{Reason: r.str()}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, data[0])
	}

	if r.err != nil {
		return nil, fmt.Errorf("сообщение типа %d: %w", data[0], r.err)
	}
	return m, nil
}

// StaleSeq сообщает, устарел ли номер последовательности seq
// относительно last с учётом переполнения uint32.
func StaleSeq(seq, last uint32) bool {
	return int32(seq-last) <= 0
}
