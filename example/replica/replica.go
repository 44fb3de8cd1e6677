package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/position"
	"github.com/vczyh/mysql-cdc/replica"
)

var (
	host     = flag.String("host", "127.0.0.1", "source host")
	port     = flag.Int("port", 3306, "source port")
	user     = flag.String("user", "root", "replication user")
	password = flag.String("password", "", "replication password")
	gtid     = flag.String("gtid", "", "start after this gtid set, from the end of the binlog when empty")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	opts := []replica.Option{
		replica.WithHost(*host),
		replica.WithPort(*port),
		replica.WithUser(*user),
		replica.WithPassword(*password),
		replica.WithHeartbeatInterval(30 * time.Second),
		replica.WithBlocking(true),
		replica.WithLogger(logger),
		replica.FromEnd(),
	}
	if *gtid != "" {
		set, err := position.ParseGTIDSet(*gtid)
		if err != nil {
			logger.Fatal("parse gtid set", zap.Error(err))
		}
		opts = append(opts, replica.FromGTID(set))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := replica.NewReplica(opts...)
	s, err := r.Start(ctx)
	if err != nil {
		logger.Fatal("start", zap.Error(err))
	}
	defer r.Close()

	for s.HasNext() {
		e := s.Next()
		state := r.State()

		switch e := e.(type) {
		case *binlog.TableMapEvent:
			logger.Info("table map",
				zap.Stringer("state", state),
				zap.Uint64("table_id", e.TableId),
				zap.String("table", e.Database+"."+e.Table))
		case *binlog.GTIDEvent:
			logger.Info("gtid", zap.Stringer("state", state), zap.String("gtid", e.GTID()))
		case *binlog.RowsEvent:
			for _, row := range e.Rows {
				switch e.Action {
				case binlog.ActionInsert:
					logger.Info("insert", zap.String("table", e.Table.Table), zap.Any("row", row.After))
				case binlog.ActionUpdate:
					logger.Info("update", zap.String("table", e.Table.Table),
						zap.Any("before", row.Before), zap.Any("after", row.After))
				case binlog.ActionDelete:
					logger.Info("delete", zap.String("table", e.Table.Table), zap.Any("row", row.Before))
				}
			}
		default:
			logger.Info("event", zap.Stringer("state", state), zap.Stringer("type", e.Header().EventType))
		}
	}

	if err := s.Err(); err != nil {
		logger.Fatal("stream", zap.Error(err))
	}
	logger.Info("stopped", zap.Stringer("position", r.Position()))
}
