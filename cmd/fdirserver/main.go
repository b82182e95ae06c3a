// cmd/fdirserver is the main entrypoint for a FastDIR cluster node.
//
// Configuration is a single YAML file (see internal/config), including the
// admin HTTP bind address; the only flag selects which file to load, so
// one binary serves any role in the cluster.
//
// Example — single node:
//
//	./fdirserver --config /etc/fastdir/node1.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fastdir/internal/adminhttp"
	"fastdir/internal/binlog"
	"fastdir/internal/cluster"
	"fastdir/internal/config"
	"fastdir/internal/dentry"
	"fastdir/internal/metrics"
	"fastdir/internal/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "/etc/fastdir/fdirserver.yaml", "Path to the node's YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("load config", "err", err)
	}

	// ── Cluster roster ───────────────────────────────────────────────────
	roster, err := cluster.NewRoster(cfg, log)
	if err != nil {
		log.Fatalw("build roster", "err", err)
	}

	// ── Binlog replay + pipeline ─────────────────────────────────────────
	store, err := binlog.OpenFileStore(cfg.DataPath, cfg.MaxBinlogFileSize)
	if err != nil {
		log.Fatalw("open binlog store", "err", err)
	}

	records, err := store.ReadAll()
	if err != nil {
		log.Fatalw("replay binlog", "err", err)
	}

	var startInodeSN, startDataVersion uint64
	tree := dentry.NewTree(0)
	for _, rec := range records {
		if err := tree.Apply(rec); err != nil {
			log.Fatalw("replay: apply record", "data_version", rec.DataVersion, "err", err)
		}
		startDataVersion = rec.DataVersion
	}
	startInodeSN = tree.CurrentInodeSN()
	log.Infow("binlog replay complete", "records", len(records), "data_version", startDataVersion, "inode_sn", startInodeSN)

	roster.Myself().SetDataVersion(startDataVersion)

	writer := binlog.NewWriteThread(store, tree.Apply)
	writer.Start()
	defer writer.Stop()

	producer := binlog.NewProducer(writer, startDataVersion+1)

	// ── TCP service ──────────────────────────────────────────────────────
	svc := server.New(cfg, log, roster, tree, store, writer, producer)
	if err := svc.ListenAndServe(roster.Myself().ServiceAddr); err != nil {
		log.Fatalw("listen", "addr", roster.Myself().ServiceAddr, "err", err)
	}

	// Cluster traffic (election, heartbeat, replica push) is served by the
	// same Server: when ClusterAddr differs from ServiceAddr a second
	// listener is opened on it, otherwise the one listener handles both.
	if roster.Myself().ClusterAddr != roster.Myself().ServiceAddr {
		if err := svc.ListenAndServe(roster.Myself().ClusterAddr); err != nil {
			log.Fatalw("listen", "addr", roster.Myself().ClusterAddr, "err", err)
		}
	}

	go svc.Heartbeat().Run()
	defer svc.Heartbeat().Stop()

	metrics.DataVersion.Set(float64(startDataVersion))

	// ── Admin HTTP surface ───────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	adminRouter := gin.New()
	adminRouter.Use(adminhttp.Logger(log), adminhttp.Recovery(log))
	adminhttp.NewHandler(roster, tree, log).Register(adminRouter)

	adminSrv := &adminHTTPServer{addr: cfg.AdminAddr, handler: adminRouter, log: log}
	adminSrv.Start()
	defer adminSrv.Stop()

	// Periodically publish runtime gauges for the admin/monitoring surface.
	statTicker := time.NewTicker(5 * time.Second)
	defer statTicker.Stop()
	go func() {
		for range statTicker.C {
			metrics.DataVersion.Set(float64(roster.Myself().DataVersion()))
			metrics.IsMaster.Set(boolToFloat(roster.Myself().IsMaster()))
		}
	}()

	log.Infow("fdirserver started", "server_id", roster.Myself().ServerID, "service_addr", roster.Myself().ServiceAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down", "server_id", roster.Myself().ServerID)
	svc.Stop()
	if err := store.Close(); err != nil {
		log.Errorw("close binlog store", "err", err)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
