package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/protocol"
)

func roundTrip(t *testing.T, m protocol.Message) protocol.Message {
	t.Helper()
	decoded, err := protocol.Decode(protocol.Encode(m))
	require.NoError(t, err)
	require.Equal(t, m.MsgType(), decoded.MsgType())
	return decoded
}

func TestCodec_Handshake(t *testing.T) {
	m := &protocol.Handshake{Version: protocol.Version, Name: "Player1", Skin: "default"}
	got := roundTrip(t, m).(*protocol.Handshake)
	assert.Equal(t, m, got)
}

func TestCodec_HandshakeAck(t *testing.T) {
	m := &protocol.HandshakeAck{
		EntityID:    "abc-123",
		Spawn:       protocol.Vec3{X: 1.5, Y: 64, Z: -3.25},
		Seed:        -987654321,
		WorldHeight: 4,
		WorldSize:   8,
	}
	assert.Equal(t, m, roundTrip(t, m).(*protocol.HandshakeAck))
}

func TestCodec_ChunkMessages(t *testing.T) {
	req := &protocol.ChunkRequest{Pos: chunk.Position{X: -2, Y: 1, Z: 7}}
	assert.Equal(t, req, roundTrip(t, req).(*protocol.ChunkRequest))

	s := chunk.NewSection(chunk.Position{X: -2, Y: 1, Z: 7})
	require.NoError(t, s.SetBlock(3, 3, 3, chunk.BlockStone))
	data := &protocol.ChunkData{Payload: s.Serialize()}
	got := roundTrip(t, data).(*protocol.ChunkData)
	restored, err := chunk.DeserializeSection(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, chunk.BlockStone, restored.GetBlock(3, 3, 3))
}

func TestCodec_EntityMessages(t *testing.T) {
	spawn := &protocol.EntitySpawn{
		EntityID: "e1", Kind: 0, Name: "Bob", Skin: "red",
		Pos: protocol.Vec3{X: 10, Y: 20, Z: 30},
	}
	assert.Equal(t, spawn, roundTrip(t, spawn).(*protocol.EntitySpawn))

	posUpd := &protocol.EntityPosition{
		EntityID: "e1", Seq: 42,
		Pos: protocol.Vec3{X: 1, Y: 2, Z: 3},
		Vel: protocol.Vec3{X: -1, Y: 0, Z: 0.5},
	}
	assert.Equal(t, posUpd, roundTrip(t, posUpd).(*protocol.EntityPosition))
}

// TestCodec_AllTypesCarryPayload прогоняет каждый тип сообщения через
// Encode→Decode и проверяет, что кадр длиннее байта типа, а
// декодированное сообщение попадает именно в свою ветку type switch —
// так, как его разбирают движки.
func TestCodec_AllTypesCarryPayload(t *testing.T) {
	msgs := []protocol.Message{
		&protocol.Handshake{Version: protocol.Version, Name: "n", Skin: "s"},
		&protocol.HandshakeAck{EntityID: "e", Seed: 7, WorldHeight: 4, WorldSize: 8},
		&protocol.ChunkRequest{Pos: chunk.Position{X: 1, Y: 2, Z: 3}},
		&protocol.ChunkData{Payload: []byte{1, 2, 3}},
		&protocol.BlockEdit{X: 1, Y: 2, Z: 3, Block: chunk.BlockStone},
		&protocol.EntitySpawn{EntityID: "e", Name: "n"},
		&protocol.EntityDespawn{EntityID: "e"},
		&protocol.EntityPosition{EntityID: "e", Seq: 1},
		&protocol.PlayerInput{Seq: 1},
		&protocol.Disconnect{Reason: "server full"},
	}
	for _, m := range msgs {
		frame := protocol.Encode(m)
		require.Greater(t, len(frame), 1,
			"кадр типа %d не должен сводиться к одному байту типа", m.MsgType())

		decoded, err := protocol.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, m, decoded)

		matched := false
		switch decoded.(type) {
		case *protocol.Handshake, *protocol.HandshakeAck, *protocol.ChunkRequest,
			*protocol.ChunkData, *protocol.BlockEdit, *protocol.EntitySpawn,
			*protocol.EntityDespawn, *protocol.EntityPosition,
			*protocol.PlayerInput, *protocol.Disconnect:
			matched = true
		}
		assert.True(t, matched,
			"сообщение типа %d должно разбираться указательной веткой", m.MsgType())
	}

	// Пульс — единственное сообщение без полей
	beat := roundTrip(t, &protocol.Heartbeat{})
	_, ok := beat.(*protocol.Heartbeat)
	assert.True(t, ok)
}

func TestCodec_RejectsBadFrames(t *testing.T) {
	_, err := protocol.Decode(nil)
	assert.ErrorIs(t, err, protocol.ErrTruncated)

	_, err = protocol.Decode([]byte{0xFF})
	assert.ErrorIs(t, err, protocol.ErrUnknownType)

	// Обрезанный EntitySpawn
	frame := protocol.Encode(&protocol.EntitySpawn{EntityID: "e1", Name: "Bob"})
	_, err = protocol.Decode(frame[:len(frame)-4])
	assert.ErrorIs(t, err, protocol.ErrTruncated)
}

func TestStaleSeq(t *testing.T) {
	assert.True(t, protocol.StaleSeq(5, 5), "повтор того же номера устарел")
	assert.True(t, protocol.StaleSeq(4, 5))
	assert.False(t, protocol.StaleSeq(6, 5))

	// Переполнение uint32: 3 свежее, чем 0xFFFFFFFE
	assert.False(t, protocol.StaleSeq(3, 0xFFFFFFFE))
	assert.True(t, protocol.StaleSeq(0xFFFFFFFE, 3))
}
