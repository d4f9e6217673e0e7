package network_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/go-voxel-engine/internal/network"
)

func TestEndpoint_EqualityIsNumeric(t *testing.T) {
	// Разные текстовые представления одного адреса дают равные Endpoint
	a, err := network.ParseEndpoint("127.0.0.1:5000")
	require.NoError(t, err)
	b, err := network.ParseEndpoint("127.0.0.1:05000")
	require.NoError(t, err)

	c, err := network.EndpointFromUDPAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	// Рефлексивность, симметричность, транзитивность значений
	assert.True(t, a == a)
	assert.True(t, a == b && b == a)
	assert.True(t, a == b && b == c && a == c)
}

func TestEndpoint_DifferentPortsNotEqual(t *testing.T) {
	a, err := network.ParseEndpoint("127.0.0.1:5000")
	require.NoError(t, err)
	b, err := network.ParseEndpoint("127.0.0.1:5001")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEndpoint_MapKey(t *testing.T) {
	a, _ := network.ParseEndpoint("10.0.0.1:7777")
	b, _ := network.ParseEndpoint("10.0.0.1:7777")

	m := map[network.Endpoint]string{a: "first"}
	m[b] = "second"
	assert.Len(t, m, 1, "равные endpoint должны попадать в одну ячейку карты")
	assert.Equal(t, "second", m[a])
}

func TestEndpoint_String(t *testing.T) {
	e, err := network.ParseEndpoint("192.168.1.42:8080")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.42:8080", e.String())

	// Round-trip через UDPAddr сохраняет числовую идентичность
	back, err := network.EndpointFromUDPAddr(e.UDPAddr())
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestEndpoint_RejectsBadInput(t *testing.T) {
	_, err := network.ParseEndpoint("not-an-address")
	assert.Error(t, err)

	_, err = network.ParseEndpoint("127.0.0.1:99999")
	assert.Error(t, err)
}
