package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "livetutor_server_build_info",
			Help:        "Build information for the livetutor server",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetutor_sessions_active",
			Help: "Number of live tutoring sessions currently connected",
		},
	)

	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livetutor_sessions_total",
			Help: "Total number of tutoring sessions started",
		},
	)

	sessionFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livetutor_session_faults_total",
			Help: "Total number of sessions ended by a task fault",
		},
	)

	handshakeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livetutor_handshake_failures_total",
			Help: "Total number of connections closed during the init handshake",
		},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetutor_frames_written_total",
			Help: "Total outbound frames written, by frame kind",
		},
		[]string{"kind"},
	)
)

// Register registers all server metrics with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, sessionsActive, sessionsTotal, sessionFaultsTotal, handshakeFailuresTotal, framesTotal)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// SessionStart increments the active gauge and the session counter.
func SessionStart() {
	sessionsActive.Inc()
	sessionsTotal.Inc()
}

// SessionEnd decrements the active gauge; fault marks an abnormal end.
func SessionEnd(fault bool) {
	sessionsActive.Dec()
	if fault {
		sessionFaultsTotal.Inc()
	}
}

// HandshakeFailure records a connection that never became a session.
func HandshakeFailure() { handshakeFailuresTotal.Inc() }

// FrameWritten records one outbound frame of the given kind.
func FrameWritten(kind string) { framesTotal.WithLabelValues(kind).Inc() }
