package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scansCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "zdt_scans_completed",
	Help: "Number of scan cycles that reached done",
})

var scansFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "zdt_scans_failed",
	Help: "Number of scan cycles aborted before merging",
})

var entriesRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "zdt_entries_rejected",
	Help: "Number of malformed node entries skipped during merging",
})

var donationsTracked = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "zdt_donations_tracked",
	Help: "Number of distinct donations in the store, pending included",
})

func RecordScanComplete(storeSize int) {
	scansCompleted.Inc()
	donationsTracked.Set(float64(storeSize))
}

func RecordScanFailure() {
	scansFailed.Inc()
}

func RecordRejectedEntry() {
	entriesRejected.Inc()
}
