package positionstore

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/position"
)

const DefaultMySQLTable = "binlog_position"

// MySQLOptions locates the table the position is kept in. Id tells apart
// the sessions sharing the table.
type MySQLOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
	Id       string
}

// DSN returns the go-sql-driver data source name of o.
func (o MySQLOptions) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	cfg.DBName = o.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// MySQLStore keeps one row per session id in a MySQL table.
type MySQLStore struct {
	db    *sql.DB
	table string
	id    string
}

func NewMySQLStore(db *sql.DB, table, id string) *MySQLStore {
	if table == "" {
		table = DefaultMySQLTable
	}
	return &MySQLStore{db: db, table: table, id: id}
}

// OpenMySQLStore connects and creates the table when it does not exist.
func OpenMySQLStore(ctx context.Context, o MySQLOptions) (*MySQLStore, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}
	s := NewMySQLStore(db, o.Table, o.Id)
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) CreateTable(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS `" + s.table + "` (" +
		"`id` VARCHAR(64) NOT NULL PRIMARY KEY, " +
		"`file_name` VARCHAR(255) NOT NULL, " +
		"`position` INT UNSIGNED NOT NULL, " +
		"`gtid_set` TEXT NULL, " +
		"`updated_at` DATETIME(3) NOT NULL)"
	_, err := s.db.ExecContext(ctx, query)
	return errors.Wrapf(err, "create table %s", s.table)
}

func (s *MySQLStore) Load(ctx context.Context) (position.Position, bool, error) {
	query := "SELECT `file_name`, `position`, `gtid_set` FROM `" + s.table + "` WHERE `id` = ?"

	r := record{Mode: modeFile}
	var gtidSet sql.NullString
	err := s.db.QueryRowContext(ctx, query, s.id).Scan(&r.File, &r.Pos, &gtidSet)
	if errors.Is(err, sql.ErrNoRows) {
		return position.Position{}, false, nil
	}
	if err != nil {
		return position.Position{}, false, errors.Wrapf(err, "load position %s", s.id)
	}
	// NULL marks a file position
	if gtidSet.Valid {
		r.Mode = modeGTID
		r.GTIDSet = gtidSet.String
	}

	p, err := r.position()
	if err != nil {
		return position.Position{}, false, err
	}
	return p, true, nil
}

func (s *MySQLStore) Save(ctx context.Context, p position.Position) error {
	r := newRecord(p)
	var gtidSet sql.NullString
	if r.Mode == modeGTID {
		gtidSet = sql.NullString{String: r.GTIDSet, Valid: true}
	}

	query := "REPLACE INTO `" + s.table + "` (`id`, `file_name`, `position`, `gtid_set`, `updated_at`) VALUES (?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query, s.id, r.File, r.Pos, gtidSet, r.UpdatedAt)
	return errors.Wrapf(err, "save position %s", s.id)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
