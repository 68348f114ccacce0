// prometheus.go - Prometheus metrics exporter
package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

var serverStartTime = time.Now()

// PrometheusExporter converts internal metrics to Prometheus format
type PrometheusExporter struct {
	version string
	rooms   *RoomRegistry
	hub     *Hub
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(version string, rooms *RoomRegistry, hub *Hub) *PrometheusExporter {
	return &PrometheusExporter{version: version, rooms: rooms, hub: hub}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := GetMetrics().Snapshot()

		var output strings.Builder

		output.WriteString("# HELP ember_info Application version info\n")
		output.WriteString("# TYPE ember_info gauge\n")
		output.WriteString(fmt.Sprintf("ember_info{version=\"%s\"} 1\n\n", prometheusLabel(p.version)))

		// Request metrics
		output.WriteString("# HELP ember_requests_total Total number of HTTP requests\n")
		output.WriteString("# TYPE ember_requests_total counter\n")
		output.WriteString(fmt.Sprintf("ember_requests_total %d\n\n", snapshot.RequestsTotal))

		// Room metrics
		output.WriteString("# HELP ember_rooms_created_total Total number of rooms created\n")
		output.WriteString("# TYPE ember_rooms_created_total counter\n")
		output.WriteString(fmt.Sprintf("ember_rooms_created_total %d\n\n", snapshot.RoomsCreatedTotal))

		rooms, members := p.rooms.Counts()
		output.WriteString("# HELP ember_rooms_active Live rooms right now\n")
		output.WriteString("# TYPE ember_rooms_active gauge\n")
		output.WriteString(fmt.Sprintf("ember_rooms_active %d\n\n", rooms))

		output.WriteString("# HELP ember_members_active Members across all live rooms\n")
		output.WriteString("# TYPE ember_members_active gauge\n")
		output.WriteString(fmt.Sprintf("ember_members_active %d\n\n", members))

		// Upload metrics
		output.WriteString("# HELP ember_uploads_total Total number of files relayed to a provider\n")
		output.WriteString("# TYPE ember_uploads_total counter\n")
		output.WriteString(fmt.Sprintf("ember_uploads_total %d\n\n", snapshot.UploadsTotal))

		output.WriteString("# HELP ember_upload_bytes_total Total bytes relayed to providers\n")
		output.WriteString("# TYPE ember_upload_bytes_total counter\n")
		output.WriteString(fmt.Sprintf("ember_upload_bytes_total %d\n\n", snapshot.UploadBytesTotal))

		output.WriteString("# HELP ember_upload_errors_total Total number of failed uploads\n")
		output.WriteString("# TYPE ember_upload_errors_total counter\n")
		output.WriteString(fmt.Sprintf("ember_upload_errors_total %d\n\n", snapshot.UploadErrorsTotal))

		// File lifecycle metrics
		output.WriteString("# HELP ember_files_removed_total Files removed, by terminal state\n")
		output.WriteString("# TYPE ember_files_removed_total counter\n")
		output.WriteString(fmt.Sprintf("ember_files_removed_total{reason=\"burned\"} %d\n", snapshot.BurnsTotal))
		output.WriteString(fmt.Sprintf("ember_files_removed_total{reason=\"expired\"} %d\n", snapshot.ExpiredTotal))
		output.WriteString(fmt.Sprintf("ember_files_removed_total{reason=\"evicted\"} %d\n\n", snapshot.EvictionsTotal))

		output.WriteString("# HELP ember_access_reports_total Total file-downloaded signals received\n")
		output.WriteString("# TYPE ember_access_reports_total counter\n")
		output.WriteString(fmt.Sprintf("ember_access_reports_total %d\n\n", snapshot.AccessReportsTotal))

		// Session metrics
		output.WriteString("# HELP ember_sessions_connected Current websocket sessions\n")
		output.WriteString("# TYPE ember_sessions_connected gauge\n")
		output.WriteString(fmt.Sprintf("ember_sessions_connected %d\n\n", p.hub.ConnectedClients()))

		output.WriteString("# HELP ember_uptime_seconds Application uptime in seconds\n")
		output.WriteString("# TYPE ember_uptime_seconds counter\n")
		output.WriteString(fmt.Sprintf("ember_uptime_seconds %.0f\n\n", time.Since(serverStartTime).Seconds()))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(output.String()))
	}
}

// Helper function to format label safely for Prometheus
func prometheusLabel(value string) string {
	// Escape quotes and backslashes
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
