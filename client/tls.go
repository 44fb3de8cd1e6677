package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/packet"
)

type TLSMode uint8

const (
	// TLSDisabled never upgrades the connection.
	TLSDisabled TLSMode = iota
	// TLSRequired encrypts the connection without verifying the server
	// certificate.
	TLSRequired
	// TLSVerifyIdentity verifies the certificate chain and host name.
	TLSVerifyIdentity
)

var ErrTLSNotSupported = errors.New("client: server does not support TLS")

func ParseTLSMode(s string) (TLSMode, error) {
	switch s {
	case "", "disabled", "DISABLED":
		return TLSDisabled, nil
	case "required", "REQUIRED":
		return TLSRequired, nil
	case "verify_identity", "VERIFY_IDENTITY":
		return TLSVerifyIdentity, nil
	default:
		return TLSDisabled, fmt.Errorf("unknown tls mode: %s", s)
	}
}

func (m TLSMode) String() string {
	switch m {
	case TLSDisabled:
		return "DISABLED"
	case TLSRequired:
		return "REQUIRED"
	case TLSVerifyIdentity:
		return "VERIFY_IDENTITY"
	default:
		return "UNKNOWN"
	}
}

func (c *Conn) handleTLS() error {
	if c.tlsMode == TLSDisabled {
		return nil
	}
	if c.handshake.GetCapabilities()&flag.ClientSSL == 0 {
		return ErrTLSNotSupported
	}

	config, err := c.buildTLSConfig()
	if err != nil {
		return err
	}

	capabilities := c.Capabilities() | flag.ClientSSL
	c.SetCapabilities(capabilities)
	if err := c.writeSSLRequestPacket(capabilities); err != nil {
		return err
	}
	return c.ClientTLS(config)
}

func (c *Conn) buildTLSConfig() (*tls.Config, error) {
	if c.tlsConfig != nil {
		config := c.tlsConfig.Clone()
		if c.tlsMode == TLSRequired {
			config.InsecureSkipVerify = true
		}
		if config.ServerName == "" {
			config.ServerName = c.verifyName()
		}
		return config, nil
	}

	config := &tls.Config{
		ServerName:         c.verifyName(),
		InsecureSkipVerify: c.tlsMode == TLSRequired,
	}

	if c.sslCert != "" || c.sslKey != "" {
		cert, err := tls.LoadX509KeyPair(c.sslCert, c.sslKey)
		if err != nil {
			return nil, errors.Wrap(err, "load key pair")
		}
		config.Certificates = []tls.Certificate{cert}
	}

	if c.sslCA != "" {
		caCertBytes, err := os.ReadFile(c.sslCA)
		if err != nil {
			return nil, errors.Wrap(err, "read ca file")
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(caCertBytes); !ok {
			return nil, fmt.Errorf("no certificate found in %s", c.sslCA)
		}
		config.RootCAs = certPool
	}

	return config, nil
}

func (c *Conn) verifyName() string {
	if c.serverName != "" {
		return c.serverName
	}
	return c.host
}

func (c *Conn) writeSSLRequestPacket(capabilities flag.Capability) error {
	return c.WritePacket(&packet.SSLRequest{
		ClientCapabilityFlags: capabilities,
		MaxPacketSize:         maxPacketSize,
		CharacterSet:          c.collation,
	})
}
