package client

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

type Option interface {
	apply(*Conn)
}

type optionFun func(*Conn)

func (f optionFun) apply(c *Conn) {
	f(c)
}

func WithHost(host string) Option {
	return optionFun(func(c *Conn) {
		c.host = host
	})
}

func WithPort(port int) Option {
	return optionFun(func(c *Conn) {
		c.port = port
	})
}

func WithUser(user string) Option {
	return optionFun(func(c *Conn) {
		c.user = user
	})
}

func WithPassword(password string) Option {
	return optionFun(func(c *Conn) {
		c.password = password
	})
}

func WithDatabase(db string) Option {
	return optionFun(func(c *Conn) {
		c.database = db
	})
}

func WithTLSMode(mode TLSMode) Option {
	return optionFun(func(c *Conn) {
		c.tlsMode = mode
	})
}

func WithSSLCA(ca string) Option {
	return optionFun(func(c *Conn) {
		c.sslCA = ca
	})
}

func WithSSLCert(cert string) Option {
	return optionFun(func(c *Conn) {
		c.sslCert = cert
	})
}

func WithSSLKey(key string) Option {
	return optionFun(func(c *Conn) {
		c.sslKey = key
	})
}

// WithServerName overrides the host name verified under TLSVerifyIdentity.
func WithServerName(name string) Option {
	return optionFun(func(c *Conn) {
		c.serverName = name
	})
}

// WithTLSConfig uses config as is instead of building one from the SSL
// files. The TLS mode still decides whether it is used.
func WithTLSConfig(config *tls.Config) Option {
	return optionFun(func(c *Conn) {
		c.tlsConfig = config
	})
}

func WithDialTimeout(timeout time.Duration) Option {
	return optionFun(func(c *Conn) {
		c.dialTimeout = timeout
	})
}

func WithLogger(logger *zap.Logger) Option {
	return optionFun(func(c *Conn) {
		c.logger = logger
	})
}
