package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivePolls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicedesk_active_call_polls",
		Help: "Number of calls currently being polled for status",
	})

	VendorRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_vendor_requests_total",
		Help: "Total requests issued against the voice vendor API",
	}, []string{"operation", "outcome"})

	MirrorWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicedesk_mirror_write_failures_total",
		Help: "Task mirror writes that failed and were swallowed per the vendor-is-truth contract",
	})

	AudioFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicedesk_audio_fetches_total",
		Help: "Vendor audio downloads actually performed (idempotent short-circuits excluded)",
	})

	ReconcileRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicedesk_reconcile_repairs_total",
		Help: "Stale in-progress tasks repaired by the reconciliation sweep",
	})
)
