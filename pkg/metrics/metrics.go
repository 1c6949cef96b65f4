// Package metrics registers the process's Prometheus collectors. The scrape
// endpoint itself is deployed separately; this package only maintains the
// counters and gauges the indexers and the read path feed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksIndexed counts committed blocks per indexer.
	BlocksIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rune_indexer",
		Name:      "blocks_indexed_total",
		Help:      "Blocks committed, per indexer.",
	}, []string{"indexer"})

	// ReorgsDetected counts fork rewinds per indexer.
	ReorgsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rune_indexer",
		Name:      "reorgs_detected_total",
		Help:      "Chain reorganizations detected and rewound, per indexer.",
	}, []string{"indexer"})

	// IndexerHeight tracks the last committed height per indexer.
	IndexerHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rune_indexer",
		Name:      "indexer_height",
		Help:      "Last committed block height, per indexer.",
	}, []string{"indexer"})

	// HTTPRequests counts read-path requests by HTTP method.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rune_indexer",
		Name:      "http_requests_total",
		Help:      "Read-path HTTP requests served.",
	}, []string{"method"})
)
