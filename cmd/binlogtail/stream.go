package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vczyh/mysql-cdc/binlog"
	"github.com/vczyh/mysql-cdc/config"
	"github.com/vczyh/mysql-cdc/mysqllog"
	"github.com/vczyh/mysql-cdc/positionstore"
	"github.com/vczyh/mysql-cdc/replica"
)

const shutdownTimeout = 5 * time.Second

// stream runs a session until ctx is done, a non-blocking dump reaches
// the end of the binlog or the session fails.
func stream(ctx context.Context, c *config.Config) (err error) {
	logger, err := mysqllog.New(c.Log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, logger.Close())
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, err := c.ReplicaOptions(logger.Logger, registry)
	if err != nil {
		return err
	}

	store, err := c.OpenStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		p, ok, err := store.Load(ctx)
		if err != nil {
			return multierr.Append(err, store.Close())
		}
		if ok {
			logger.Info("resume from saved position", zap.Stringer("position", p))
			opts = append(opts, replica.FromSavedPosition(p))
		}
	}

	r := replica.NewReplica(opts...)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := r.Start(ctx)
	if err != nil {
		if store != nil {
			err = multierr.Append(err, store.Close())
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the other goroutines stop with the stream
		defer cancel()
		for st.HasNext() {
			logEvent(logger.Logger, st.Next())
		}
		return st.Err()
	})
	g.Go(func() error {
		<-gctx.Done()
		return r.Close()
	})

	var saver *positionstore.Saver
	if store != nil {
		saver = positionstore.NewSaver(store, r.Position,
			positionstore.WithInterval(c.Store.Interval),
			positionstore.WithLogger(logger.Logger))
		g.Go(func() error {
			return saver.Run(gctx)
		})
	}

	if c.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: c.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", c.Metrics.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if saver != nil {
		// the session is closed, so this saves its final position
		err = multierr.Append(err, saver.Close())
	}
	logger.Info("stopped", zap.Stringer("position", r.Position()), zap.Error(err))
	return err
}

func logEvent(logger *zap.Logger, e binlog.Event) {
	h := e.Header()
	fields := []zap.Field{
		zap.Stringer("type", h.EventType),
		zap.Uint32("log_pos", h.LogPos),
	}

	switch e := e.(type) {
	case *binlog.RotateEvent:
		fields = append(fields, zap.String("file", e.Name), zap.Uint64("pos", e.Position))
	case *binlog.GTIDEvent:
		fields = append(fields, zap.String("gtid", e.GTID()))
	case *binlog.QueryEvent:
		fields = append(fields, zap.String("database", e.Database), zap.String("query", e.Query))
	case *binlog.XidEvent:
		fields = append(fields, zap.Uint64("xid", e.XID))
	case *binlog.RowsEvent:
		fields = append(fields,
			zap.Stringer("action", e.Action),
			zap.String("table", e.Table.Database+"."+e.Table.Table),
			zap.Int("rows", len(e.Rows)))
	case *binlog.HeartbeatEvent:
		logger.Debug("binlog event", fields...)
		return
	}
	logger.Info("binlog event", fields...)
}
