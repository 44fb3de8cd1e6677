package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/binlog"
	mysqlflag "github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/server"
)

var (
	port     = flag.Int("port", 3306, "listen port")
	password = flag.String("password", "root-pw", "password of root")
	interval = flag.Duration("interval", time.Second, "commit a row every interval")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	userProvider := server.NewMemoryUserProvider()
	err = userProvider.Create(&server.CreateUserRequest{
		User:     "root",
		Host:     "%",
		Password: *password,
		Method:   auth.CachingSha2Password,
		//Method: auth.MySQLNativePassword,
		TLSRequired: false,
	})
	if err != nil {
		logger.Fatal("create user", zap.Error(err))
	}

	srv := server.NewServer(
		server.WithPort(*port),
		server.WithUserProvider(userProvider),
		server.WithLogger(logger),
	)
	if err := srv.Start(); err != nil {
		logger.Fatal("start", zap.Error(err))
	}
	defer srv.Close()

	if _, err := srv.Binlog().Exec("shop", "CREATE TABLE orders (id INT PRIMARY KEY, note VARCHAR(50))"); err != nil {
		logger.Fatal("create table", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	table := &binlog.TableMapEvent{
		TableId:  1,
		Database: "shop",
		Table:    "orders",
		Columns: []binlog.Column{
			{Type: mysqlflag.MySQLTypeLong, Name: "id"},
			{Type: mysqlflag.MySQLTypeVarchar, Meta: 200, Name: "note", CollationId: 45, Nullable: true},
		},
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for id := int32(1); ; id++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rows := &binlog.RowsEvent{
			Action:  binlog.ActionInsert,
			Version: 2,
			Table:   table,
			Rows:    []binlog.RowImage{{After: binlog.Row{id, fmt.Sprintf("order %d", id)}}},
		}
		gtid, err := srv.Binlog().Commit("shop", table, rows)
		if err != nil {
			logger.Fatal("commit", zap.Error(err))
		}
		logger.Info("committed", zap.String("gtid", gtid), zap.Int32("id", id))
	}
}
