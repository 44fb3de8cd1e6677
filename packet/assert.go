package packet

const (
	OKPacketHeader                = 0x00
	EOFPacketHeader               = 0xfe
	ErrPacketHeader               = 0xff
	AuthSwitchRequestPacketHeader = 0xfe
	AuthMoreDataPacketHeader      = 0x01
	LocalInfileRequest            = 0xfb
)

// The functions below inspect a whole packet, header included.

func IsOK(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	payloadLen := FixedLengthInteger.Get(data[:3])
	return data[4] == OKPacketHeader && payloadLen >= 7
}

func IsEOF(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	payloadLen := FixedLengthInteger.Get(data[:3])
	return data[4] == EOFPacketHeader && payloadLen < 9
}

func IsErr(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	return data[4] == ErrPacketHeader
}

func IsAuthSwitchRequest(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	return data[4] == AuthSwitchRequestPacketHeader
}

func IsAuthMoreData(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	return data[4] == AuthMoreDataPacketHeader
}

func IsLocalInfileRequest(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	return data[4] == LocalInfileRequest
}

// IsRequestPublicKey reports whether a caching_sha2_password client asks
// for the server's RSA public key.
func IsRequestPublicKey(data []byte) bool {
	return len(data) == 5 && data[4] == 0x02
}

// IsSSLRequest reports whether data is an SSLRequest rather than a full
// HandshakeResponse41.
func IsSSLRequest(data []byte) bool {
	return len(data) == 4+4+4+1+23
}

func IsCommand(data []byte, c Command) bool {
	return len(data) > 4 && data[4] == c.Byte()
}

func IsPing(data []byte) bool {
	return len(data) == 5 && data[4] == ComPing.Byte()
}

func IsQuery(data []byte) bool {
	return IsCommand(data, ComQuery)
}

func IsQuit(data []byte) bool {
	return len(data) == 5 && data[4] == ComQuit.Byte()
}
