package main

import (
	"fmt"
	"net/http"

	"biomesxp.io/internal/persistence/indexdb"
	"biomesxp.io/internal/poll"
)

func metricsHandler(chainID uint64, cache *poll.Cache, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP xp_pollers Active contract read pollers.\n")
		fmt.Fprintf(rw, "# TYPE xp_pollers gauge\n")
		fmt.Fprintf(rw, "xp_pollers{chain=\"%d\"} %d\n", chainID, cache.Pollers())

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP xp_index_queue_depth Index writer backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE xp_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "xp_index_queue_depth{chain=\"%d\"} %d\n", chainID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP xp_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE xp_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "xp_index_queue_capacity{chain=\"%d\"} %d\n", chainID, s.QueueCapacity)

		fmt.Fprintf(rw, "# HELP xp_index_drop_tx_total Transaction records dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE xp_index_drop_tx_total counter\n")
		fmt.Fprintf(rw, "xp_index_drop_tx_total{chain=\"%d\"} %d\n", chainID, s.DropTxTotal)
	}
}
