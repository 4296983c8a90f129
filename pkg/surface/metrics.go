package surface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// registrySlots tracks occupied registry slots across all registries.
	registrySlots = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brushcsg",
		Subsystem: "surface",
		Name:      "registry_slots",
		Help:      "Occupied surface registry slots",
	})

	// registryRefs tracks outstanding registrations across all registries.
	registryRefs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brushcsg",
		Subsystem: "surface",
		Name:      "registry_refs",
		Help:      "Outstanding surface registrations",
	})

	// cacheLookups counts derivation cache lookups.
	// Labels: kind (positions, normals, uv, lightmap), result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "surface",
		Name:      "cache_lookups_total",
		Help:      "Surface derivation cache lookups",
	}, []string{"kind", "result"})
)
