package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cogniblock_cache_hits_total",
	Help: "counter of content-hash cache hits",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cogniblock_cache_misses_total",
	Help: "counter of content-hash cache misses",
})
