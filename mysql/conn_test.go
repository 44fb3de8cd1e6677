package mysql

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/packet"
)

func pipe(t *testing.T) (Conn, Conn) {
	t.Helper()
	a, b := net.Pipe()
	client := NewClientConnection(a, flag.ClientProtocol41)
	server := NewServerConnection(b, 1, flag.ClientProtocol41)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestConnSequence(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = client.WriteCommandPacket(packet.NewQuery("SELECT 1"))
	}()
	data, err := server.ReadPacket()
	require.NoError(t, err)
	assert.True(t, packet.IsQuery(data))
	assert.Equal(t, uint8(0), data[3])

	go func() {
		_ = server.WriteEmptyOK()
	}()
	data, err = client.ReadPacket()
	require.NoError(t, err)
	assert.True(t, packet.IsOK(data))
	assert.Equal(t, uint8(1), data[3])
}

func TestConnLargePacket(t *testing.T) {
	client, server := pipe(t)

	payload := bytes.Repeat([]byte{'x'}, packet.MaxPayloadLen+10)
	go func() {
		_ = client.WriteCommandPacket(packet.NewSimple(payload))
	}()

	data, err := server.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, payload, packet.Payload(data))
}

func TestConnWriteError(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = server.WriteError(packet.NewERR(code.ErrAccessDeniedError, "28000", "denied"))
	}()
	data, err := client.ReadPacket()
	require.NoError(t, err)
	require.True(t, packet.IsErr(data))

	errPkt, err := packet.ParseERR(data, flag.ClientProtocol41)
	require.NoError(t, err)
	assert.Equal(t, code.ErrAccessDeniedError, errPkt.ErrorCode)

	assert.NoError(t, client.Close())
	assert.True(t, client.Closed())
	assert.NoError(t, client.Close())
}
