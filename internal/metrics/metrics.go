// Package metrics exposes FastDIR's Prometheus instrumentation, grounded
// on the client_golang usage shown in the RachitKumar205-acp-kv and
// route-beacon-rib-ingester examples.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts every dispatched frame by command name.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastdir_requests_total",
		Help: "Total number of request frames dispatched, by command.",
	}, []string{"command"})

	// ElectionRoundsTotal counts election polling rounds run by this node.
	ElectionRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastdir_election_rounds_total",
		Help: "Total number of election polling rounds run by this node.",
	})

	// ElectionsWonTotal counts elections this node won (became master).
	ElectionsWonTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastdir_elections_won_total",
		Help: "Total number of elections this node won.",
	})

	// DataVersion reports this node's current applied data_version.
	DataVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fastdir_data_version",
		Help: "Highest data_version applied on this node.",
	})

	// ReplicationLag reports, on the master, the gap between this node's
	// data_version and a slave's last acknowledged data_version.
	ReplicationLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fastdir_replication_lag_records",
		Help: "Record count a slave trails the master by, by slave server_id.",
	}, []string{"slave_server_id"})

	// IsMaster is 1 when this node currently believes it is master.
	IsMaster = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fastdir_is_master",
		Help: "1 if this node currently considers itself master, else 0.",
	})
)
