package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// passTotal counts finished passes by outcome.
	passTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memosync_pass_total",
		Help: "Sync passes by trigger and result",
	}, []string{"trigger", "result"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memosync_pass_duration_seconds",
		Help:    "Sync pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// skippedTotal counts triggers dropped by the gate or the policy.
	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memosync_trigger_skipped_total",
		Help: "Sync triggers that did not start a pass",
	}, []string{"trigger", "reason"})

	operationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memosync_group_operation_total",
		Help: "Dispatched pending group operations by kind and result",
	}, []string{"kind", "result"})

	pushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memosync_push_total",
		Help: "Pushed memos by action and result",
	}, []string{"action", "result"})

	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memosync_uploaded_bytes_total",
		Help: "Attachment bytes uploaded",
	})

	pulledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memosync_pulled_memos_total",
		Help: "Remote memos merged during pull by outcome",
	}, []string{"outcome"})
)
