package mysqllog

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config describes where and how the logs are written. An empty File
// writes to stdout, otherwise the file is rotated by size.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`

	// megabytes
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// Logger is a zap logger whose level can be changed while it runs.
type Logger struct {
	*zap.Logger

	level zap.AtomicLevel
	file  *lumberjack.Logger
}

func New(cfg Config) (*Logger, error) {
	lev, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lev)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", FormatConsole:
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case FormatJSON:
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, errors.Wrap(ErrUnknownFormat, cfg.Format)
	}

	l := &Logger{level: level}
	var sink zapcore.WriteSyncer
	if cfg.File == "" {
		sink = zapcore.Lock(os.Stdout)
	} else {
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		sink = zapcore.AddSync(l.file)
	}

	l.Logger = zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller())
	return l, nil
}

// TimeEncoder writes the time the way the MySQL error log does.
func TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000000Z07:00"))
}

// ParseLevel accepts the zap level names. An empty level is info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lev zapcore.Level
	if err := lev.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, errors.Wrap(ErrUnknownLevel, s)
	}
	return lev, nil
}

func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

func (l *Logger) SetLevel(s string) error {
	lev, err := ParseLevel(s)
	if err != nil {
		return err
	}
	l.level.SetLevel(lev)
	return nil
}

// Close flushes the buffered entries and closes the log file.
func (l *Logger) Close() error {
	err := l.Sync()
	// stdout cannot be synced on every platform
	if l.file == nil {
		return nil
	}
	return multierr.Append(err, l.file.Close())
}
