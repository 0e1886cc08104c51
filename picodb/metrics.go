package picodb

import "github.com/prometheus/client_golang/prometheus"

// Metrics generalizes the teacher's raw atomic.Int64/atomic.Uint64
// counters (db.go's ReaderCount/WriterCount/ReadCount/WriteCount, and
// monitoring.go's TableStats) into real prometheus instruments, registered
// on a private registry so embedding applications choose whether and how
// to expose them (no HTTP exporter is wired here; serving metrics over the
// wire is front-end territory).
type Metrics struct {
	Registry *prometheus.Registry

	Reads      prometheus.Counter
	Writes     prometheus.Counter
	IndexHits  prometheus.Counter
	KeyCount   *prometheus.GaugeVec
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picodb_reads_total",
			Help: "Total number of document reads.",
		}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picodb_writes_total",
			Help: "Total number of document writes (create/update/delete).",
		}),
		IndexHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picodb_index_scans_total",
			Help: "Total number of parsed Find filters passed to the query planner.",
		}),
		KeyCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "picodb_keyspace_key_count",
			Help: "Number of keys in a keyspace, sampled after writes.",
		}, []string{"keyspace"}),
	}
	reg.MustRegister(m.Reads, m.Writes, m.IndexHits, m.KeyCount)
	return m
}
