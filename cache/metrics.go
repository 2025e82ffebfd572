package cache

import "github.com/prometheus/client_golang/prometheus"

// Lookup results recorded by Metrics.
const (
	ResultHit     = "hit"
	ResultNullHit = "null_hit"
	ResultMiss    = "miss"
	ResultBypass  = "bypass"
	ResultTimeout = "timeout"
)

// Metrics are the Prometheus collectors of one Service.
type Metrics struct {
	Lookups   *prometheus.CounterVec
	Fills     *prometheus.CounterVec
	Writes    *prometheus.CounterVec
	Refreshes prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "object_cache",
			Name:      "lookups_total",
			Help:      "Cache-aside reads by result.",
		}, []string{"schema", "result"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "object_cache",
			Name:      "fills_total",
			Help:      "Cache populations after a miss by outcome.",
		}, []string{"schema", "outcome"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "object_cache",
			Name:      "writes_total",
			Help:      "Write-path record replacements by outcome.",
		}, []string{"schema", "outcome"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "object_cache",
			Name:      "ttl_refreshes_total",
			Help:      "Read hits that extended a record below the low-water mark.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Lookups, m.Fills, m.Writes, m.Refreshes)
	}
	return m
}
