package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/session"
)

func testEndpoint(t *testing.T, s string) network.Endpoint {
	t.Helper()
	ep, err := network.ParseEndpoint(s)
	require.NoError(t, err)
	return ep
}

func TestSession_Lifecycle(t *testing.T) {
	now := time.Now()
	s := session.New(testEndpoint(t, "127.0.0.1:7001"), nil, now)

	assert.Equal(t, session.StateConnecting, s.State())

	// Connecting -> Connected по подтверждению рукопожатия
	require.NoError(t, s.Connect())
	assert.Equal(t, session.StateConnected, s.State())
	assert.ErrorIs(t, s.Connect(), session.ErrBadTransition)

	// Connected -> Disconnecting по явному запросу
	require.NoError(t, s.BeginDisconnect())
	assert.Equal(t, session.StateDisconnecting, s.State())

	// Disconnecting -> Disconnected по завершении сноса
	assert.True(t, s.Terminate())
	assert.Equal(t, session.StateDisconnected, s.State())
}

func TestSession_TerminateExactlyOnce(t *testing.T) {
	now := time.Now()
	s := session.New(testEndpoint(t, "127.0.0.1:7002"), nil, now)
	require.NoError(t, s.Connect())

	teardowns := 0
	// Проверка таймаута может срабатывать на нескольких тиках подряд;
	// снос должен выполниться ровно один раз.
	for i := 0; i < 5; i++ {
		if s.Terminate() {
			teardowns++
		}
	}
	assert.Equal(t, 1, teardowns)
}

func TestSession_Timeout(t *testing.T) {
	start := time.Now()
	s := session.New(testEndpoint(t, "127.0.0.1:7003"), nil, start)

	assert.False(t, s.TimedOut(start.Add(5*time.Second), session.DefaultTimeout))
	assert.True(t, s.TimedOut(start.Add(9*time.Second), session.DefaultTimeout))

	// Любой принятый кадр сдвигает отметку
	s.Touch(start.Add(8 * time.Second))
	assert.False(t, s.TimedOut(start.Add(9*time.Second), session.DefaultTimeout))
}

func TestTable_OneSessionPerEndpoint(t *testing.T) {
	tbl := session.NewTable()
	ep := testEndpoint(t, "127.0.0.1:7004")
	now := time.Now()

	require.NoError(t, tbl.Add(session.New(ep, nil, now)))
	assert.ErrorIs(t, tbl.Add(session.New(ep, nil, now)), session.ErrEndpointBusy)
	assert.Equal(t, 1, tbl.Len())

	assert.True(t, tbl.Remove(ep))
	assert.False(t, tbl.Remove(ep))
	require.NoError(t, tbl.Add(session.New(ep, nil, now)))
}

func TestTable_Expired(t *testing.T) {
	tbl := session.NewTable()
	start := time.Now()

	aep := testEndpoint(t, "127.0.0.1:7005")
	bep := testEndpoint(t, "127.0.0.1:7006")
	a := session.New(aep, nil, start)
	b := session.New(bep, nil, start)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())

	b.Touch(start.Add(7 * time.Second))

	expired := tbl.Expired(start.Add(10*time.Second), session.DefaultTimeout)
	require.Len(t, expired, 1)
	assert.Equal(t, aep, expired[0].Endpoint())

	// Терминальные сессии не считаются истёкшими повторно
	a.Terminate()
	b.Touch(start.Add(20 * time.Second))
	assert.Empty(t, tbl.Expired(start.Add(20*time.Second), session.DefaultTimeout))

	// А замолчавшая живая сессия — считается
	late := tbl.Expired(start.Add(40*time.Second), session.DefaultTimeout)
	require.Len(t, late, 1)
	assert.Equal(t, bep, late[0].Endpoint())
}
