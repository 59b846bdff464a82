package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchRequests counts reverse-channel fetch requests emitted to the
// casting client, labeled by app origin. This metric is a counter and only
// increases.
var FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aircast_fetch_requests_total",
	Help: "Number of reverse-channel fetch requests sent",
}, []string{"origin"})

// MediaResponses counts processed client fetch responses, labeled by result:
// "cached" for intermediate rounds, "resolved" when a response drains the
// queue, "rejected" for session mismatches and malformed payloads.
var MediaResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aircast_media_responses_total",
	Help: "Number of client fetch responses processed",
}, []string{"result"})

// CachedResources tracks the number of rewritten manifests currently held
// in the resource cache. Drops to zero whenever a session resets.
var CachedResources = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "aircast_cached_resources",
	Help: "Number of rewritten manifests in the resource cache",
})

// ActiveSessions tracks the number of live casting sessions.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "aircast_active_sessions",
	Help: "Number of active casting sessions",
})

// SessionErrors counts session-level failures per error type (e.g.
// "session_mismatch", "malformed_response", "transport_write",
// "unsupported_scheme").
var SessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aircast_session_errors_total",
	Help: "Number of session errors",
}, []string{"error_type"})

// WatchdogReaps counts play attempts abandoned by the session watchdog
// because the client never answered an outstanding fetch request.
var WatchdogReaps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aircast_watchdog_reaps_total",
	Help: "Number of stalled play attempts reaped by the watchdog",
})
