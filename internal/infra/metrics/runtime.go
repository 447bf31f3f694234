package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo, dbPoolConns, cacheLookupsTotal) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; labels carry the relay build.",
		},
		[]string{"version", "commit", "go_version"},
	)

	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total, idle, in_use
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Redis read-through cache lookups in front of the user and plan repositories.",
		},
		[]string{"cache", "result"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

// PoolStat is satisfied by *pgxpool.Stat.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
}

func ObservePool(s PoolStat) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
}

func ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(norm(cache), result).Inc()
}
