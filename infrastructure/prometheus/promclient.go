package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var AppliedUpdatesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_applied_updates_total",
		Help: "depth events applied to the local order book",
	},
)

var DecodeErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_decode_errors_total",
		Help: "malformed frames skipped without dropping the connection",
	},
)

var EmissionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_emissions_total",
		Help: "throttled snapshots pushed to consumers",
	},
)

var ReconnectsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_reconnects_total",
		Help: "abnormal connection terminations entering the reconnect path",
	},
)

var FallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_fallbacks_total",
		Help: "entries into each fallback stage",
	},
	[]string{"stage"},
)

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_open_books",
		Help: "order books currently maintained",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(AppliedUpdatesTotal)
	reg.MustRegister(DecodeErrorsTotal)
	reg.MustRegister(EmissionsTotal)
	reg.MustRegister(ReconnectsTotal)
	reg.MustRegister(FallbacksTotal)
	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
