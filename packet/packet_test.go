package packet

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/charset"
	"github.com/vczyh/mysql-cdc/code"
	"github.com/vczyh/mysql-cdc/flag"
)

const testCapabilities = flag.ClientProtocol41 | flag.ClientSecureConnection | flag.ClientPluginAuth |
	flag.ClientPluginAuthLenencClientData | flag.ClientTransactions | flag.ClientSSL

func TestHandshake(t *testing.T) {
	collation, err := charset.GetCollation(255)
	require.NoError(t, err)
	salt := auth.RandomBytes(20)

	h := NewHandshake("8.0.36", 7, salt, testCapabilities, collation, auth.CachingSha2Password)
	dump, err := h.Dump(testCapabilities)
	require.NoError(t, err)

	parsed, err := ParseHandshake(dump)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0a), parsed.ProtocolVersion)
	assert.Equal(t, "8.0.36", parsed.ServerVersion)
	assert.Equal(t, uint32(7), parsed.ConnectionId)
	assert.Equal(t, testCapabilities, parsed.GetCapabilities())
	assert.Equal(t, auth.CachingSha2Password, parsed.AuthPlugin)
	assert.Equal(t, salt, parsed.GetAuthData())
	assert.Equal(t, defaultUTF8MB4Collation(t), parsed.CharacterSet.Name())
}

func defaultUTF8MB4Collation(t *testing.T) string {
	t.Helper()
	cs, err := charset.Get(charset.UTF8MB4)
	require.NoError(t, err)
	return cs.DefaultCollation().Name()
}

func TestHandshakeResponse(t *testing.T) {
	collation, err := charset.GetCollation(45)
	require.NoError(t, err)

	resp := &HandshakeResponse{
		ClientCapabilityFlags: testCapabilities | flag.ClientConnectAttrs,
		MaxPacketSize:         MaxPayloadLen,
		CharacterSet:          collation,
		Username:              []byte("repl"),
		AuthRes:               []byte{0x01, 0x02, 0x03},
		AuthPlugin:            auth.MySQLNativePassword,
	}
	resp.AddAttribute("_client_name", "binlogtail")
	resp.SetSequence(1)

	dump, err := resp.Dump(testCapabilities)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), dump[3])

	parsed, err := ParseHandshakeResponse(dump)
	require.NoError(t, err)
	assert.Equal(t, "repl", parsed.GetUsername())
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, parsed.AuthRes)
	assert.Equal(t, auth.MySQLNativePassword, parsed.AuthPlugin)
	require.Len(t, parsed.Attributes, 1)
	assert.Equal(t, "binlogtail", parsed.Attributes[0].Val)
}

func TestSSLRequestIsRecognized(t *testing.T) {
	collation, err := charset.GetCollation(45)
	require.NoError(t, err)
	req := &SSLRequest{ClientCapabilityFlags: testCapabilities, MaxPacketSize: MaxPayloadLen, CharacterSet: collation}
	dump, err := req.Dump(testCapabilities)
	require.NoError(t, err)
	assert.True(t, IsSSLRequest(dump))

	parsed, err := ParseSSLRequest(dump)
	require.NoError(t, err)
	assert.True(t, parsed.ClientCapabilityFlags.Has(flag.ClientSSL))
}

func TestOKAndERR(t *testing.T) {
	ok := NewOK(3, 9, flag.ServerStatusAutocommit)
	dump, err := ok.Dump(testCapabilities)
	require.NoError(t, err)
	assert.True(t, IsOK(dump))

	parsed, err := ParseOk(dump, testCapabilities)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), parsed.AffectedRows)
	assert.Equal(t, uint64(9), parsed.LastInsertId)

	e := NewERR(code.ErrAccessDeniedError, "28000", "Access denied for user 'repl'")
	dump, err = e.Dump(testCapabilities)
	require.NoError(t, err)
	assert.True(t, IsErr(dump))

	parsedErr, err := ParseERR(dump, testCapabilities)
	require.NoError(t, err)
	assert.Equal(t, code.ErrAccessDeniedError, parsedErr.ErrorCode)
	assert.Equal(t, "28000", parsedErr.SqlState)
	assert.Contains(t, parsedErr.Error(), "Access denied")
}

func TestColumnAndRow(t *testing.T) {
	col := NewVarcharColumn("@@GLOBAL.binlog_checksum")
	dump, err := col.Dump(testCapabilities)
	require.NoError(t, err)

	parsed, err := ParseColumnDefinition(dump)
	require.NoError(t, err)
	assert.Equal(t, "def", parsed.Catalog)
	assert.Equal(t, "@@GLOBAL.binlog_checksum", parsed.Name)
	assert.Equal(t, flag.MySQLTypeVarString, parsed.ColumnType)

	row := NewTextResultSetRow(sql.NullString{String: "CRC32", Valid: true}, sql.NullString{})
	dump, err = row.Dump(testCapabilities)
	require.NoError(t, err)

	parsedRow, err := ParseTextResultSetRow(dump, 2)
	require.NoError(t, err)
	assert.Equal(t, "CRC32", parsedRow.Values[0].String)
	assert.False(t, parsedRow.Values[1].Valid)
}

func TestBinlogDumpGTID(t *testing.T) {
	p := NewBinlogDumpGTID(1001, "", 4, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, flag.BinlogDumpNonBlock)
	dump, err := p.Dump(0)
	require.NoError(t, err)
	assert.True(t, IsCommand(dump, ComBinlogDumpGTID))

	parsed, err := ParseBinlogDumpGTID(dump)
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), parsed.ServerId)
	assert.Equal(t, uint64(4), parsed.Position)
	assert.Equal(t, flag.BinlogDumpNonBlock|flag.BinlogThroughGTID, parsed.Flags)
	assert.Len(t, parsed.SIDBlock, 8)
}

func TestRegisterReplica(t *testing.T) {
	p := NewRegisterReplica(1001, "replica-1", "repl", "", 3306)
	dump, err := p.Dump(0)
	require.NoError(t, err)

	parsed, err := ParseRegisterReplica(dump)
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), parsed.ServerId)
	assert.Equal(t, "replica-1", parsed.Hostname)
	assert.Equal(t, uint16(3306), parsed.Port)
}
