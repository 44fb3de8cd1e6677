package client

import (
	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/packet"
)

const (
	cachingSha2RequestPublicKey = 0x02
	cachingSha2FastAuthSuccess  = 0x03
	cachingSha2PerformFullAuth  = 0x04
)

func (c *Conn) auth(method auth.Method, authData []byte) error {
	data, err := c.ReadPacket()
	if err != nil {
		return err
	}

	if packet.IsAuthSwitchRequest(data) {
		return c.handleAuthSwitchRequestPacket(data)
	}
	return c.finalAuth(method, data, authData)
}

func (c *Conn) handleAuthSwitchRequestPacket(data []byte) error {
	switchPkt, err := packet.ParseAuthSwitchRequest(data)
	if err != nil {
		return err
	}

	method := switchPkt.AuthPlugin
	authData := switchPkt.GetAuthData()
	if err = c.writeAuthSwitchResponsePacket(method, authData); err != nil {
		return err
	}

	data, err = c.ReadPacket()
	if err != nil {
		return err
	}
	return c.finalAuth(method, data, authData)
}

func (c *Conn) finalAuth(method auth.Method, data, authData []byte) error {
	if packet.IsOK(data) || packet.IsErr(data) {
		return c.handleOKERRPacket(data)
	}

	switch method {
	case auth.SHA256Password:
		return c.sha256Authentication(data, authData)
	case auth.CachingSha2Password:
		return c.cachingSHA2Authentication(data, authData)
	default:
		return packet.ErrPacketData
	}
}

func (c *Conn) writeAuthSwitchResponsePacket(method auth.Method, authData []byte) error {
	authRes, err := c.generateAuthRes(method, authData)
	if err != nil {
		return err
	}
	return c.WritePacket(packet.NewAuthSwitchResponse(authRes))
}

func (c *Conn) generateAuthRes(method auth.Method, authData []byte) ([]byte, error) {
	switch method {
	case auth.MySQLNativePassword, auth.CachingSha2Password:
		if c.password == "" {
			return nil, nil
		}
		return method.EncryptPassword([]byte(c.password), authData)

	case auth.SHA256Password:
		if c.password == "" {
			return []byte{0x00}, nil
		}
		if c.TLSed() {
			return append([]byte(c.password), 0x00), nil
		}
		// request public key from server
		return []byte{0x01}, nil

	default:
		return nil, auth.ErrUnsupportedAuthenticationMethod
	}
}

func (c *Conn) sha256Authentication(data, authData []byte) error {
	if !packet.IsAuthMoreData(data) {
		return packet.ErrPacketData
	}
	pubKey, err := packet.ParseAuthMoreData(data)
	if err != nil {
		return err
	}
	if err := c.writePasswordEncryptedWithPublicKeyPacket(pubKey, authData); err != nil {
		return err
	}
	return c.readOKERRPacket()
}

// https://dev.mysql.com/doc/dev/mysql-server/latest/page_caching_sha2_authentication_exchanges.html
func (c *Conn) cachingSHA2Authentication(data, authData []byte) error {
	if !packet.IsAuthMoreData(data) {
		return packet.ErrPacketData
	}
	pluginData, err := packet.ParseAuthMoreData(data)
	if err != nil {
		return err
	}
	if len(pluginData) == 0 {
		return packet.ErrPacketData
	}

	switch pluginData[0] {
	case cachingSha2FastAuthSuccess:
		return c.readOKERRPacket()

	case cachingSha2PerformFullAuth:
		if c.TLSed() {
			plain := append([]byte(c.password), 0x00)
			if err := c.WritePacket(packet.NewSimple(plain)); err != nil {
				return err
			}
			return c.readOKERRPacket()
		}

		pubKey, err := c.requestPublicKey()
		if err != nil {
			return err
		}
		if err := c.writePasswordEncryptedWithPublicKeyPacket(pubKey, authData); err != nil {
			return err
		}
		return c.readOKERRPacket()

	default:
		return errors.Wrapf(packet.ErrPacketData, "caching_sha2_password status 0x%02x", pluginData[0])
	}
}

func (c *Conn) requestPublicKey() ([]byte, error) {
	if err := c.WritePacket(packet.NewSimple([]byte{cachingSha2RequestPublicKey})); err != nil {
		return nil, err
	}

	data, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}
	if packet.IsErr(data) {
		return nil, c.handleOKERRPacket(data)
	}
	return packet.ParseAuthMoreData(data)
}

func (c *Conn) writePasswordEncryptedWithPublicKeyPacket(pubKey []byte, seed []byte) error {
	encrypted, err := auth.EncryptWithPublicKey(pubKey, []byte(c.password), seed)
	if err != nil {
		return err
	}
	return c.WritePacket(packet.NewSimple(encrypted))
}
