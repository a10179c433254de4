package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/taskflow/taskflow/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeled(w, "taskflow_signups_total", "outcome", snap.Signups)
	writeLabeled(w, "taskflow_signins_total", "outcome", snap.Signins)
	writeLabeled(w, "taskflow_auth_failures_total", "reason", snap.AuthFailures)

	writeMetric(w, "taskflow_tasks_created_total %d\n", snap.TasksCreated)
	writeMetric(w, "taskflow_tasks_updated_total %d\n", snap.TasksUpdated)
	writeMetric(w, "taskflow_tasks_completed_total %d\n", snap.TasksCompleted)
	writeMetric(w, "taskflow_tasks_deleted_total %d\n", snap.TasksDeleted)

	writeLabeled(w, "taskflow_chat_requests_total", "outcome", snap.Chats)
	writeMetric(w, "taskflow_chat_duration_seconds_count %d\n", snap.ChatDurationCount)
	writeMetric(w, "taskflow_chat_duration_seconds_sum %.6f\n", float64(snap.ChatDurationTotalNs)/1e9)

	writeLabeled(w, "taskflow_rate_limited_total", "scope", snap.RateLimited)
}

// writeLabeled writes one sample per label value in a stable order.
func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
