package server

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/binlog"
)

type Option interface {
	apply(*Server)
}

type optionFun func(*Server)

func (f optionFun) apply(s *Server) {
	f(s)
}

func WithHost(host string) Option {
	return optionFun(func(s *Server) {
		s.host = host
	})
}

// WithPort sets the listen port. Zero picks a free port, see Server.Port.
func WithPort(port int) Option {
	return optionFun(func(s *Server) {
		s.port = port
	})
}

func WithVersion(version string) Option {
	return optionFun(func(s *Server) {
		s.version = version
	})
}

func WithDefaultAuthMethod(method auth.Method) Option {
	return optionFun(func(s *Server) {
		s.defaultAuthMethod = method
	})
}

func WithUserProvider(userProvider UserProvider) Option {
	return optionFun(func(s *Server) {
		s.userProvider = userProvider
	})
}

func WithSHA2Cache(cache SHA2Cache) Option {
	return optionFun(func(s *Server) {
		s.sha2Cache = cache
	})
}

func WithUseSSL(useSSL bool) Option {
	return optionFun(func(s *Server) {
		s.useSSL = useSSL
	})
}

func WithSSLCA(sslCA string) Option {
	return optionFun(func(s *Server) {
		s.sslCA = sslCA
	})
}

func WithSSLCert(sslCert string) Option {
	return optionFun(func(s *Server) {
		s.sslCert = sslCert
	})
}

func WithSSLKey(sslKey string) Option {
	return optionFun(func(s *Server) {
		s.sslKey = sslKey
	})
}

// WithCertsDir sets where generated certificates are written, and read
// from when they already exist.
func WithCertsDir(dir string) Option {
	return optionFun(func(s *Server) {
		s.certsDir = dir
	})
}

// WithRSAKeyPath sets the PEM private key used by sha256_password and
// caching_sha2_password. A key is generated when it is empty.
func WithRSAKeyPath(path string) Option {
	return optionFun(func(s *Server) {
		s.rsaKeyPath = path
	})
}

func WithRequireSecureTransport(require bool) Option {
	return optionFun(func(s *Server) {
		s.requireSecureTransport = require
	})
}

func WithServerId(serverId uint32) Option {
	return optionFun(func(s *Server) {
		s.serverId = serverId
	})
}

func WithServerUUID(id uuid.UUID) Option {
	return optionFun(func(s *Server) {
		s.serverUUID = id
	})
}

func WithBinlogChecksum(checksum binlog.ChecksumAlgorithm) Option {
	return optionFun(func(s *Server) {
		s.checksum = checksum
	})
}

// WithBinlog serves an existing log instead of a new empty one.
func WithBinlog(b *Binlog) Option {
	return optionFun(func(s *Server) {
		s.binlog = b
	})
}

func WithHandler(h Handler) Option {
	return optionFun(func(s *Server) {
		s.h = h
	})
}

func WithLogger(logger *zap.Logger) Option {
	return optionFun(func(s *Server) {
		s.logger = logger
	})
}
