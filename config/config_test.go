package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/positionstore"
	"github.com/vczyh/mysql-cdc/replica"
)

const testConfig = `
source:
  host: db.internal
  user: repl
  password: secret
  tls_mode: required
replica:
  server_id: 1001
  start: gtid
  gtid_set: 3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5
  heartbeat_interval: 10s
  unknown_table_policy: skip
store:
  type: file
  file: /var/lib/binlogtail/position.toml
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	file := filepath.Join(t.TempDir(), "binlogtail.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestDefaults(t *testing.T) {
	c, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", c.Source.Host)
	assert.Equal(t, 3306, c.Source.Port)
	assert.Equal(t, "DISABLED", c.Source.TLSMode)
	assert.Equal(t, StartEnd, c.Replica.Start)
	assert.Equal(t, 30*time.Second, c.Replica.HeartbeatInterval)
	assert.True(t, c.Replica.Blocking)
	assert.Equal(t, "ignore", c.Replica.RegressionPolicy)
	assert.Equal(t, "fail", c.Replica.UnknownTablePolicy)
	assert.Equal(t, StoreNone, c.Store.Type)
	assert.Equal(t, time.Second, c.Store.Interval)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("BINLOGTAIL_SOURCE_PORT", "3307")
	t.Setenv("BINLOGTAIL_REPLICA_BLOCKING", "false")
	t.Setenv("BINLOGTAIL_STORE_INTERVAL", "5s")

	c, err := Load(New(), writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", c.Source.Host)
	assert.Equal(t, 3307, c.Source.Port)
	assert.Equal(t, "repl", c.Source.User)
	assert.Equal(t, uint32(1001), c.Replica.ServerId)
	assert.Equal(t, StartGTID, c.Replica.Start)
	assert.Equal(t, 10*time.Second, c.Replica.HeartbeatInterval)
	assert.False(t, c.Replica.Blocking)
	assert.Equal(t, 5*time.Second, c.Store.Interval)
	assert.Equal(t, "/var/lib/binlogtail/position.toml", c.Store.File)
	assert.Equal(t, "json", c.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 100, c.Log.MaxSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"tls mode", "source:\n  tls_mode: sometimes\n"},
		{"start", "replica:\n  start: beginning\n"},
		{"position without file", "replica:\n  start: position\n"},
		{"gtid set", "replica:\n  start: gtid\n  gtid_set: not-a-set\n"},
		{"regression policy", "replica:\n  regression_policy: panic\n"},
		{"unknown table policy", "replica:\n  unknown_table_policy: guess\n"},
		{"location", "replica:\n  location: Mars/Olympus\n"},
		{"store", "store:\n  type: etcd\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, test.content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplicaOptions(t *testing.T) {
	c, err := Load(New(), writeConfig(t, testConfig))
	require.NoError(t, err)

	opts, err := c.ReplicaOptions(nil, nil)
	require.NoError(t, err)
	r := replica.NewReplica(opts...)
	assert.Equal(t, uint32(1001), r.ServerId())
	pos := r.Position()
	require.True(t, pos.IsGTID())
	assert.Equal(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5", pos.GTIDSet.String())

	c.Replica.Start = StartPosition
	c.Replica.File = "mysql-bin.000002"
	c.Replica.Pos = 0
	opts, err = c.ReplicaOptions(nil, nil)
	require.NoError(t, err)
	pos = replica.NewReplica(opts...).Position()
	assert.Equal(t, "mysql-bin.000002", pos.Name)
	assert.Equal(t, uint32(4), pos.Pos)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	c, err := Load(New(), "")
	require.NoError(t, err)

	s, err := c.OpenStore(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	c.Store.Type = StoreFile
	c.Store.File = filepath.Join(t.TempDir(), "position.toml")
	s, err = c.OpenStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &positionstore.FileStore{}, s)

	mr := miniredis.RunT(t)
	c.Store.Type = StoreRedis
	c.Store.Redis.Addr = mr.Addr()
	s, err = c.OpenStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &positionstore.RedisStore{}, s)
	assert.NoError(t, s.Close())
}
