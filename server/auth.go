package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/myerrors"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

const (
	cachingSha2FastAuthSuccess = 0x03
	cachingSha2PerformFullAuth = 0x04
	sha256RequestPublicKey     = 0x01
)

func (s *Server) auth(conn mysql.Conn) (*Session, error) {
	salt := auth.RandomBytes(20)
	hs := packet.NewHandshake(s.version, conn.ConnectionId(), salt, conn.Capabilities(), s.collation, s.defaultAuthMethod)
	if err := conn.WritePacket(hs); err != nil {
		return nil, err
	}

	hsr, err := s.handleTLSAndHandshakeResponse(conn)
	if err != nil {
		return nil, err
	}

	user := hsr.GetUsername()
	authRes := hsr.AuthRes
	host := clientHost(conn)

	usingPassword := "NO"
	if len(authRes) > 0 {
		usingPassword = "YES"
	}
	errAccessDenied := myerrors.AccessDenied.Build(user, host, usingPassword)

	key, err := s.userProvider.Key(user, host)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, errAccessDenied
		}
		return nil, err
	}

	tlsRequired, err := s.userProvider.TLSRequired(key)
	if err != nil {
		return nil, err
	}
	if !conn.TLSed() {
		if s.requireSecureTransport {
			return nil, myerrors.SecureTransportRequired.Build()
		}
		if tlsRequired {
			return nil, errAccessDenied
		}
	}

	method, err := s.userProvider.AuthenticationMethod(key)
	if err != nil {
		return nil, err
	}

	if hsr.AuthPlugin != method {
		salt = auth.RandomBytes(20)
		if err := conn.WritePacket(packet.NewAuthSwitchRequest(method, append(salt, 0x00))); err != nil {
			return nil, err
		}
		data, err := conn.ReadPacket()
		if err != nil {
			return nil, err
		}
		authRes = data[4:]
	}

	if err := s.authentication(conn, method, key, authRes, salt, errAccessDenied); err != nil {
		return nil, err
	}
	if err := conn.WriteEmptyOK(); err != nil {
		return nil, err
	}
	return newSession(conn.ConnectionId(), user, host, conn.TLSed()), nil
}

func (s *Server) handleTLSAndHandshakeResponse(conn mysql.Conn) (*packet.HandshakeResponse, error) {
	data, err := conn.ReadPacket()
	if err != nil {
		return nil, err
	}

	if packet.IsSSLRequest(data) {
		if err := s.handleTLS(data, conn); err != nil {
			return nil, err
		}
		if data, err = conn.ReadPacket(); err != nil {
			return nil, err
		}
	}

	hsr, err := packet.ParseHandshakeResponse(data)
	if err != nil {
		return nil, err
	}
	conn.SetCapabilities(conn.Capabilities() & hsr.ClientCapabilityFlags)
	return hsr, nil
}

// authentication verifies authRes for method and leaves the final OK to
// the caller.
func (s *Server) authentication(conn mysql.Conn, method auth.Method, key string,
	authRes, salt []byte, errAccessDenied error) error {

	as, err := s.userProvider.AuthenticationString(key)
	if err != nil {
		return err
	}

	switch method {
	case auth.MySQLNativePassword:
		var challengeData []byte
		if len(as) > 0 {
			if len(as) != 41 {
				return ErrInvalidAuthenticationStringFormat
			}
			if challengeData, err = hex.DecodeString(string(bytes.ToLower(as[1:]))); err != nil {
				return err
			}
		}
		return mismatchAsDenied(method.ChallengeResponse(challengeData, authRes, salt), errAccessDenied)

	case auth.SHA256Password:
		password, err := s.sha256Password(conn, authRes, salt)
		if err != nil {
			return err
		}
		return s.validate(method, as, password, errAccessDenied)

	// https://dev.mysql.com/doc/dev/mysql-server/latest/page_caching_sha2_authentication_exchanges.html
	case auth.CachingSha2Password:
		if len(as) == 0 {
			if len(authRes) == 0 {
				return nil
			}
			return errAccessDenied
		}

		if challengeData := s.sha2Cache.Get(key); challengeData != nil {
			if err := method.ChallengeResponse(challengeData, authRes, salt); err != nil {
				return mismatchAsDenied(err, errAccessDenied)
			}
			return conn.WritePacket(packet.NewAuthMoreData([]byte{cachingSha2FastAuthSuccess}))
		}

		if err := conn.WritePacket(packet.NewAuthMoreData([]byte{cachingSha2PerformFullAuth})); err != nil {
			return err
		}
		password, err := s.cachingSHA2Password(conn, salt)
		if err != nil {
			return err
		}
		if err := s.validate(method, as, password, errAccessDenied); err != nil {
			return err
		}

		challengeData, err := method.GenerateChallengeData(password)
		if err != nil {
			return err
		}
		s.sha2Cache.Put(key, challengeData)
		return nil

	default:
		return auth.ErrUnsupportedAuthenticationMethod
	}
}

func (s *Server) validate(method auth.Method, as, password []byte, errAccessDenied error) error {
	if len(as) == 0 || len(password) == 0 {
		if len(as) == 0 && len(password) == 0 {
			return nil
		}
		return errAccessDenied
	}
	return mismatchAsDenied(method.ReAscertainPassword(as, password), errAccessDenied)
}

func mismatchAsDenied(err, errAccessDenied error) error {
	if errors.Is(err, auth.ErrMismatch) {
		return errAccessDenied
	}
	return err
}

func (s *Server) sha256Password(conn mysql.Conn, authRes, salt []byte) ([]byte, error) {
	switch {
	case len(authRes) == 0 || bytes.Equal(authRes, []byte{0x00}):
		return nil, nil
	case len(authRes) == 1 && authRes[0] == sha256RequestPublicKey:
		if err := s.writePublicKeyPacket(conn); err != nil {
			return nil, err
		}
		return s.plaintextPassword(conn, salt)
	case conn.TLSed():
		return bytes.TrimSuffix(authRes, []byte{0x00}), nil
	default:
		return nil, packet.ErrPacketData
	}
}

func (s *Server) cachingSHA2Password(conn mysql.Conn, salt []byte) ([]byte, error) {
	data, err := conn.ReadPacket()
	if err != nil {
		return nil, err
	}

	if conn.TLSed() {
		return bytes.TrimSuffix(data[4:], []byte{0x00}), nil
	}

	if !packet.IsRequestPublicKey(data) {
		return nil, packet.ErrPacketData
	}
	if err := s.writePublicKeyPacket(conn); err != nil {
		return nil, err
	}
	return s.plaintextPassword(conn, salt)
}

func (s *Server) plaintextPassword(conn mysql.Conn, salt []byte) ([]byte, error) {
	data, err := conn.ReadPacket()
	if err != nil {
		return nil, err
	}
	return auth.DecryptWithPrivateKey(s.privateKey, data[4:], salt)
}

func (s *Server) writePublicKeyPacket(conn mysql.Conn) error {
	return conn.WritePacket(packet.NewAuthMoreData(s.publicKeyBytes))
}

func (s *Server) buildKeyPair() (err error) {
	if s.rsaKeyPath == "" {
		if s.privateKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			return err
		}
	} else {
		privateBytes, err := os.ReadFile(s.rsaKeyPath)
		if err != nil {
			return err
		}
		if s.privateKey, err = parsePrivateKey(privateBytes); err != nil {
			return errors.Wrap(err, s.rsaKeyPath)
		}
	}

	s.publicKeyBytes, err = auth.MarshalPublicKey(s.privateKey)
	return err
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, rest := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no pem data found, data: %s", rest)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}
