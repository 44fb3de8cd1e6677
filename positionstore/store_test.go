package positionstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/position"
)

const testGTIDSet = "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-3"

func filePosition() position.Position {
	return position.Position{Name: "mysql-bin.000003", Pos: 120}
}

func gtidPosition(t *testing.T) position.Position {
	set, err := position.ParseGTIDSet(testGTIDSet)
	require.NoError(t, err)
	return position.Position{Name: "mysql-bin.000003", Pos: 120, GTIDSet: set}
}

func assertPosition(t *testing.T, want, got position.Position) {
	t.Helper()
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Pos, got.Pos)
	require.Equal(t, want.IsGTID(), got.IsGTID())
	if want.IsGTID() {
		assert.True(t, want.GTIDSet.Equal(got.GTIDSet), "%s", got.GTIDSet)
	}
}

// roundTrip saves positions by file and by GTID and loads them back.
func roundTrip(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, p := range []position.Position{filePosition(), gtidPosition(t)} {
		require.NoError(t, s.Save(ctx, p))
		got, ok, err := s.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assertPosition(t, p, got)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.toml")
	s := NewFileStore(path)
	roundTrip(t, s)

	var r record
	_, err := toml.DecodeFile(path, &r)
	require.NoError(t, err)
	assert.Equal(t, modeGTID, r.Mode)
	assert.Equal(t, testGTIDSet, r.GTIDSet)
	assert.False(t, r.UpdatedAt.IsZero())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are removed")
	assert.NoError(t, s.Close())
}

func TestFileStoreInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"binlog\"\nfile = \"a\"\npos = 4\n"), 0644))

	_, _, err := NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "")
	roundTrip(t, s)

	assert.Equal(t, "120", mr.HGet(DefaultRedisKey, "pos"))
	assert.Equal(t, testGTIDSet, mr.HGet(DefaultRedisKey, "gtid_set"))
	require.NoError(t, s.Close())
}

func TestOpenRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedisStore(context.Background(), &redis.Options{Addr: mr.Addr()}, "app:pos")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), filePosition()))
	assert.Equal(t, "file", mr.HGet("app:pos", "mode"))
	require.NoError(t, s.Close())

	down, err := miniredis.Run()
	require.NoError(t, err)
	addr := down.Addr()
	down.Close()
	_, err = OpenRedisStore(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1}, "")
	assert.Error(t, err)
}

func TestMySQLStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewMySQLStore(db, "", "orders-sync")
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `binlog_position`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.CreateTable(ctx))

	selectQuery := regexp.QuoteMeta("SELECT `file_name`, `position`, `gtid_set` FROM `binlog_position` WHERE `id` = ?")
	mock.ExpectQuery(selectQuery).
		WithArgs("orders-sync").
		WillReturnRows(sqlmock.NewRows([]string{"file_name", "position", "gtid_set"}))
	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	replace := regexp.QuoteMeta("REPLACE INTO `binlog_position` (`id`, `file_name`, `position`, `gtid_set`, `updated_at`) VALUES (?, ?, ?, ?, ?)")
	mock.ExpectExec(replace).
		WithArgs("orders-sync", "mysql-bin.000003", int64(120), testGTIDSet, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(ctx, gtidPosition(t)))

	mock.ExpectExec(replace).
		WithArgs("orders-sync", "mysql-bin.000003", int64(120), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(ctx, filePosition()))

	mock.ExpectQuery(selectQuery).
		WithArgs("orders-sync").
		WillReturnRows(sqlmock.NewRows([]string{"file_name", "position", "gtid_set"}).
			AddRow("mysql-bin.000003", 120, testGTIDSet))
	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assertPosition(t, gtidPosition(t), got)

	mock.ExpectQuery(selectQuery).
		WithArgs("orders-sync").
		WillReturnRows(sqlmock.NewRows([]string{"file_name", "position", "gtid_set"}).
			AddRow("mysql-bin.000003", 120, nil))
	got, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assertPosition(t, filePosition(), got)

	mock.ExpectClose()
	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOptionsDSN(t *testing.T) {
	o := MySQLOptions{Host: "db", Port: 3307, User: "cdc", Password: "pw", Database: "meta"}
	assert.Equal(t, "cdc:pw@tcp(db:3307)/meta?parseTime=true", o.DSN())
}
