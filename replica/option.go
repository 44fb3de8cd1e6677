package replica

import (
	"crypto/tls"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/client"
	"github.com/vczyh/mysql-cdc/position"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBackoffInitial    = time.Second
	DefaultBackoffMax        = 30 * time.Second
)

type Option interface {
	apply(*Replica)
}

type optionFunc func(*Replica)

func (f optionFunc) apply(r *Replica) {
	f(r)
}

func WithHost(host string) Option {
	return optionFunc(func(r *Replica) {
		r.host = host
	})
}

func WithPort(port int) Option {
	return optionFunc(func(r *Replica) {
		r.port = port
	})
}

func WithUser(user string) Option {
	return optionFunc(func(r *Replica) {
		r.user = user
	})
}

func WithPassword(password string) Option {
	return optionFunc(func(r *Replica) {
		r.password = password
	})
}

func WithTLSMode(mode client.TLSMode) Option {
	return optionFunc(func(r *Replica) {
		r.tlsMode = mode
	})
}

func WithSSLCA(ca string) Option {
	return optionFunc(func(r *Replica) {
		r.sslCA = ca
	})
}

func WithSSLCert(cert string) Option {
	return optionFunc(func(r *Replica) {
		r.sslCert = cert
	})
}

func WithSSLKey(key string) Option {
	return optionFunc(func(r *Replica) {
		r.sslKey = key
	})
}

func WithTLSConfig(config *tls.Config) Option {
	return optionFunc(func(r *Replica) {
		r.tlsConfig = config
	})
}

func WithDialTimeout(timeout time.Duration) Option {
	return optionFunc(func(r *Replica) {
		r.dialTimeout = timeout
	})
}

// WithServerId sets the server id the replica registers with. It must
// differ from the source and from every other replica of it. A random id
// is used when it is zero.
func WithServerId(serverId uint32) Option {
	return optionFunc(func(r *Replica) {
		r.serverId = serverId
	})
}

func WithUUID(uuid string) Option {
	return optionFunc(func(r *Replica) {
		r.uuid = uuid
	})
}

// WithReportHost sets the host shown by SHOW REPLICAS on the source.
func WithReportHost(host string) Option {
	return optionFunc(func(r *Replica) {
		r.reportHost = host
	})
}

func WithReportPort(port uint16) Option {
	return optionFunc(func(r *Replica) {
		r.reportPort = port
	})
}

// FromPosition starts streaming at an offset of a binlog file.
func FromPosition(file string, pos uint32) Option {
	return optionFunc(func(r *Replica) {
		if pos < 4 {
			pos = 4
		}
		r.start = position.Position{Name: file, Pos: pos}
	})
}

// FromGTID starts streaming after the transactions in set.
func FromGTID(set *position.GTIDSet) Option {
	return optionFunc(func(r *Replica) {
		if set == nil {
			set = position.NewGTIDSet()
		}
		r.start = position.Position{GTIDSet: set.Clone()}
	})
}

// FromEnd starts streaming at the current end of the source binlog. It is
// the default.
func FromEnd() Option {
	return optionFunc(func(r *Replica) {
		r.start = position.Position{}
	})
}

// WithHeartbeatInterval sets the period the source sends heartbeats at. A
// stream that stays silent for two periods is reconnected. Zero disables
// both.
func WithHeartbeatInterval(interval time.Duration) Option {
	return optionFunc(func(r *Replica) {
		r.heartbeatInterval = interval
	})
}

// WithBlocking selects a blocking dump, which waits for new events at the
// end of the binlog and reconnects on failure. A non-blocking dump ends the
// stream at the end of the binlog.
func WithBlocking(blocking bool) Option {
	return optionFunc(func(r *Replica) {
		r.blocking = blocking
	})
}

// WithMaxRetries bounds consecutive connection attempts. Zero retries
// forever.
func WithMaxRetries(n uint64) Option {
	return optionFunc(func(r *Replica) {
		r.maxRetries = n
	})
}

// WithBackoff sets the exponential backoff between connection attempts.
func WithBackoff(initial, max time.Duration) Option {
	return optionFunc(func(r *Replica) {
		r.backoffInitial = initial
		r.backoffMax = max
	})
}

func WithRegressionPolicy(policy position.RegressionPolicy) Option {
	return optionFunc(func(r *Replica) {
		r.regressionPolicy = policy
	})
}

func WithUnknownTablePolicy(policy UnknownTablePolicy) Option {
	return optionFunc(func(r *Replica) {
		r.unknownTablePolicy = policy
	})
}

// WithLocation sets the zone of decoded DATETIME, DATE and TIMESTAMP
// values.
func WithLocation(loc *time.Location) Option {
	return optionFunc(func(r *Replica) {
		r.location = loc
	})
}

func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(r *Replica) {
		r.logger = logger
	})
}

// WithRegisterer registers the session metrics. Replicas sharing a
// registerer share the collectors.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return optionFunc(func(r *Replica) {
		r.registerer = registerer
	})
}

// FromSavedPosition resumes at p, a position returned by Replica.Position
// and persisted since. A zero p starts at the end of the binlog.
func FromSavedPosition(p position.Position) Option {
	return optionFunc(func(r *Replica) {
		r.start = p.Clone()
	})
}
