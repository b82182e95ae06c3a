// Package adminhttp is the node's monitoring/operator HTTP surface — not
// the client wire protocol (that is internal/wire over raw TCP), just
// health, Prometheus scraping, and a human-readable cluster snapshot.
// Built in the gin style of internal/api/handlers.go and
// internal/api/middleware.go, repurposed to this narrower admin-only role.
package adminhttp

import (
	"net/http"
	"time"

	"fastdir/internal/cluster"
	"fastdir/internal/dentry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler wires the roster and dentry tree into read-only admin routes.
type Handler struct {
	roster *cluster.Roster
	tree   *dentry.Tree
	log    *zap.SugaredLogger
}

func NewHandler(roster *cluster.Roster, tree *dentry.Tree, log *zap.SugaredLogger) *Handler {
	return &Handler{roster: roster, tree: tree, log: log}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/cluster/stat", h.clusterStat)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type peerStat struct {
	ServerID    int    `json:"server_id"`
	ClusterAddr string `json:"cluster_addr"`
	ServiceAddr string `json:"service_addr"`
	Status      string `json:"status"`
	IsMaster    bool   `json:"is_master"`
	DataVersion uint64 `json:"data_version"`
}

func (h *Handler) clusterStat(c *gin.Context) {
	var stats []peerStat
	h.roster.IteratePeers(func(p *cluster.Peer) bool {
		stats = append(stats, peerStat{
			ServerID:    p.ServerID,
			ClusterAddr: p.ClusterAddr,
			ServiceAddr: p.ServiceAddr,
			Status:      p.Status().String(),
			IsMaster:    p.IsMaster(),
			DataVersion: p.DataVersion(),
		})
		return true
	})

	c.JSON(http.StatusOK, gin.H{
		"cluster_id":   h.roster.ClusterID(),
		"myself":       h.roster.Myself().ServerID,
		"dentry_count": h.tree.Count(),
		"peers":        stats,
	})
}

// Logger is the request-logging middleware, ported from
// internal/api/middleware.go's Logger().
func Logger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("admin http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Recovery is the panic-recovery middleware, ported from the same file.
func Recovery(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("admin http handler panicked", "recover", r, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
