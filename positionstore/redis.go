package positionstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vczyh/mysql-cdc/position"
)

const DefaultRedisKey = "mysql-cdc:position"

// RedisStore keeps the position in a Redis hash.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// OpenRedisStore connects with opts and checks the connection.
func OpenRedisStore(ctx context.Context, opts *redis.Options, key string) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis %s", opts.Addr)
	}
	return NewRedisStore(client, key), nil
}

func (s *RedisStore) Load(ctx context.Context) (position.Position, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return position.Position{}, false, errors.Wrapf(err, "load %s", s.key)
	}
	if len(fields) == 0 {
		return position.Position{}, false, nil
	}

	pos, err := strconv.ParseUint(fields["pos"], 10, 32)
	if err != nil {
		return position.Position{}, false, errors.Wrap(ErrInvalidRecord, err.Error())
	}
	r := record{
		Mode:    fields["mode"],
		File:    fields["file"],
		Pos:     uint32(pos),
		GTIDSet: fields["gtid_set"],
	}
	p, err := r.position()
	if err != nil {
		return position.Position{}, false, err
	}
	return p, true, nil
}

func (s *RedisStore) Save(ctx context.Context, p position.Position) error {
	r := newRecord(p)
	err := s.client.HSet(ctx, s.key,
		"mode", r.Mode,
		"file", r.File,
		"pos", r.Pos,
		"gtid_set", r.GTIDSet,
		"updated_at", r.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	return errors.Wrapf(err, "save %s", s.key)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
