package config

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/client"
	"github.com/vczyh/mysql-cdc/mysqllog"
	"github.com/vczyh/mysql-cdc/position"
	"github.com/vczyh/mysql-cdc/positionstore"
	"github.com/vczyh/mysql-cdc/replica"
)

const EnvPrefix = "BINLOGTAIL"

const (
	StartEnd      = "end"
	StartPosition = "position"
	StartGTID     = "gtid"
)

const (
	StoreNone  = ""
	StoreFile  = "file"
	StoreRedis = "redis"
	StoreMySQL = "mysql"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Source  SourceConfig    `mapstructure:"source"`
	Replica ReplicaConfig   `mapstructure:"replica"`
	Store   StoreConfig     `mapstructure:"store"`
	Log     mysqllog.Config `mapstructure:"log"`
	Metrics MetricsConfig   `mapstructure:"metrics"`
}

type SourceConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	TLSMode     string        `mapstructure:"tls_mode"`
	SSLCA       string        `mapstructure:"ssl_ca"`
	SSLCert     string        `mapstructure:"ssl_cert"`
	SSLKey      string        `mapstructure:"ssl_key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ReplicaConfig struct {
	ServerId   uint32 `mapstructure:"server_id"`
	UUID       string `mapstructure:"uuid"`
	ReportHost string `mapstructure:"report_host"`
	ReportPort uint16 `mapstructure:"report_port"`

	// Start is end, position or gtid. A position found in the store wins.
	Start   string `mapstructure:"start"`
	File    string `mapstructure:"file"`
	Pos     uint32 `mapstructure:"pos"`
	GTIDSet string `mapstructure:"gtid_set"`

	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	Blocking           bool          `mapstructure:"blocking"`
	MaxRetries         uint64        `mapstructure:"max_retries"`
	BackoffInitial     time.Duration `mapstructure:"backoff_initial"`
	BackoffMax         time.Duration `mapstructure:"backoff_max"`
	RegressionPolicy   string        `mapstructure:"regression_policy"`
	UnknownTablePolicy string        `mapstructure:"unknown_table_policy"`
	Location           string        `mapstructure:"location"`
}

type StoreConfig struct {
	Type     string        `mapstructure:"type"`
	Interval time.Duration `mapstructure:"interval"`
	File     string        `mapstructure:"file"`
	Redis    RedisConfig   `mapstructure:"redis"`
	MySQL    MySQLConfig   `mapstructure:"mysql"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
	Id       string `mapstructure:"id"`
}

type MetricsConfig struct {
	// Addr serves /metrics when not empty.
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.host", "127.0.0.1")
	v.SetDefault("source.port", client.DefaultPort)
	v.SetDefault("source.user", "root")
	v.SetDefault("source.password", "")
	v.SetDefault("source.tls_mode", client.TLSDisabled.String())
	v.SetDefault("source.ssl_ca", "")
	v.SetDefault("source.ssl_cert", "")
	v.SetDefault("source.ssl_key", "")
	v.SetDefault("source.dial_timeout", client.DefaultDialTimeout)

	v.SetDefault("replica.server_id", 0)
	v.SetDefault("replica.uuid", "")
	v.SetDefault("replica.report_host", "")
	v.SetDefault("replica.report_port", 0)
	v.SetDefault("replica.start", StartEnd)
	v.SetDefault("replica.file", "")
	v.SetDefault("replica.pos", 4)
	v.SetDefault("replica.gtid_set", "")
	v.SetDefault("replica.heartbeat_interval", replica.DefaultHeartbeatInterval)
	v.SetDefault("replica.blocking", true)
	v.SetDefault("replica.max_retries", 0)
	v.SetDefault("replica.backoff_initial", replica.DefaultBackoffInitial)
	v.SetDefault("replica.backoff_max", replica.DefaultBackoffMax)
	v.SetDefault("replica.regression_policy", position.RegressionIgnore.String())
	v.SetDefault("replica.unknown_table_policy", replica.UnknownTableFail.String())
	v.SetDefault("replica.location", "UTC")

	v.SetDefault("store.type", StoreNone)
	v.SetDefault("store.interval", positionstore.DefaultSaveInterval)
	v.SetDefault("store.file", "binlogtail.position.toml")
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key", positionstore.DefaultRedisKey)
	v.SetDefault("store.mysql.host", "127.0.0.1")
	v.SetDefault("store.mysql.port", 3306)
	v.SetDefault("store.mysql.user", "root")
	v.SetDefault("store.mysql.password", "")
	v.SetDefault("store.mysql.database", "")
	v.SetDefault("store.mysql.table", positionstore.DefaultMySQLTable)
	v.SetDefault("store.mysql.id", "binlogtail")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", mysqllog.FormatConsole)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with the defaults and the environment
// bound. Keys map to variables as source.port to BINLOGTAIL_SOURCE_PORT.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, when not empty, over the defaults. The environment
// overrides both.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := client.ParseTLSMode(c.Source.TLSMode); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := c.startOption(); err != nil {
		return err
	}
	if _, err := position.ParseRegressionPolicy(c.Replica.RegressionPolicy); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := replica.ParseUnknownTablePolicy(c.Replica.UnknownTablePolicy); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := time.LoadLocation(c.Replica.Location); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	switch c.Store.Type {
	case StoreNone, StoreFile, StoreRedis, StoreMySQL:
	default:
		return errors.Wrapf(ErrInvalid, "store type %q", c.Store.Type)
	}
	return nil
}

func (c *Config) startOption() (replica.Option, error) {
	r := c.Replica
	switch strings.ToLower(r.Start) {
	case "", StartEnd:
		return replica.FromEnd(), nil
	case StartPosition:
		if r.File == "" {
			return nil, errors.Wrap(ErrInvalid, "start position needs a file")
		}
		return replica.FromPosition(r.File, r.Pos), nil
	case StartGTID:
		set, err := position.ParseGTIDSet(r.GTIDSet)
		if err != nil {
			return nil, errors.Wrap(ErrInvalid, err.Error())
		}
		return replica.FromGTID(set), nil
	default:
		return nil, errors.Wrapf(ErrInvalid, "start %q", r.Start)
	}
}

// ReplicaOptions maps the source and replica sections to session options.
func (c *Config) ReplicaOptions(logger *zap.Logger, registerer prometheus.Registerer) ([]replica.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s, r := c.Source, c.Replica

	tlsMode, _ := client.ParseTLSMode(s.TLSMode)
	regression, _ := position.ParseRegressionPolicy(r.RegressionPolicy)
	unknownTable, _ := replica.ParseUnknownTablePolicy(r.UnknownTablePolicy)
	location, _ := time.LoadLocation(r.Location)
	start, _ := c.startOption()

	return []replica.Option{
		replica.WithHost(s.Host),
		replica.WithPort(s.Port),
		replica.WithUser(s.User),
		replica.WithPassword(s.Password),
		replica.WithTLSMode(tlsMode),
		replica.WithSSLCA(s.SSLCA),
		replica.WithSSLCert(s.SSLCert),
		replica.WithSSLKey(s.SSLKey),
		replica.WithDialTimeout(s.DialTimeout),
		replica.WithServerId(r.ServerId),
		replica.WithUUID(r.UUID),
		replica.WithReportHost(r.ReportHost),
		replica.WithReportPort(r.ReportPort),
		start,
		replica.WithHeartbeatInterval(r.HeartbeatInterval),
		replica.WithBlocking(r.Blocking),
		replica.WithMaxRetries(r.MaxRetries),
		replica.WithBackoff(r.BackoffInitial, r.BackoffMax),
		replica.WithRegressionPolicy(regression),
		replica.WithUnknownTablePolicy(unknownTable),
		replica.WithLocation(location),
		replica.WithLogger(logger),
		replica.WithRegisterer(registerer),
	}, nil
}

// OpenStore connects the configured position store. It returns nil when
// positions are not persisted.
func (c *Config) OpenStore(ctx context.Context) (positionstore.Store, error) {
	st := c.Store
	switch st.Type {
	case StoreNone:
		return nil, nil
	case StoreFile:
		return positionstore.NewFileStore(st.File), nil
	case StoreRedis:
		s, err := positionstore.OpenRedisStore(ctx, &redis.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		}, st.Redis.Key)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreMySQL:
		s, err := positionstore.OpenMySQLStore(ctx, positionstore.MySQLOptions{
			Host:     st.MySQL.Host,
			Port:     st.MySQL.Port,
			User:     st.MySQL.User,
			Password: st.MySQL.Password,
			Database: st.MySQL.Database,
			Table:    st.MySQL.Table,
			Id:       st.MySQL.Id,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Wrapf(ErrInvalid, "store type %q", st.Type)
	}
}
