package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/client"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := client.CreateConnection(ctx,
		client.WithHost("127.0.0.1"),
		client.WithPort(3306),
		client.WithUser("root"),
		client.WithPassword("root-pw"),
		client.WithLogger(logger))
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer conn.Quit()

	if err := conn.Ping(); err != nil {
		logger.Fatal("ping", zap.Error(err))
	}

	rs, err := conn.Query("SELECT @@server_id, @@server_uuid, @@binlog_checksum")
	if err != nil {
		logger.Fatal("query", zap.Error(err))
	}
	for _, name := range rs.ColumnNames() {
		v, _ := rs.Value(0, name)
		logger.Info("variable", zap.String("name", name), zap.String("value", v.String))
	}
	logger.Info("connected",
		zap.String("server_version", conn.ServerVersion()),
		zap.Uint32("connection_id", conn.ServerConnectionId()))
}
