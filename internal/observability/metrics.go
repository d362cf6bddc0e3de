package observability

import (
	"sync"
	"time"
)

// RouteSnapshot summarizes the calls seen on one route.
type RouteSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the JSON document served on /metrics.
type Snapshot struct {
	UptimeSec        int64                    `json:"uptime_sec"`
	TotalRequests    int64                    `json:"total_requests"`
	TotalErrors      int64                    `json:"total_errors"`
	InFlight         int64                    `json:"in_flight"`
	RateLimitWaits   int64                    `json:"rate_limit_waits"`
	RateLimitWaitMs  int64                    `json:"rate_limit_wait_ms"`
	GatewayEvents    map[string]int64         `json:"gateway_events"`
	OrderTransitions map[string]int64         `json:"order_transitions"`
	Lifecycle        *LifecycleSnapshot       `json:"lifecycle,omitempty"`
	Routes           map[string]RouteSnapshot `json:"routes"`
}

type routeStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics collects in-process counters for the order API and its provider gateway.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	routes         map[string]*routeStats
	rateLimitWaits int64
	rateLimitWait  time.Duration
	gatewayEvents  map[string]int64
	transitions    map[string]int64
	lifecycle      lifecycleStats
}

// CallSpan measures one in-flight call. The zero value is a no-op.
type CallSpan struct {
	metrics *Metrics
	route   string
	start   time.Time
}

type lifecycleStats struct {
	shutdownAt time.Time
	inflight   int64
}

type LifecycleSnapshot struct {
	ShutdownAt         time.Time `json:"shutdown_at"`
	InFlightAtShutdown int64     `json:"inflight_at_shutdown"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:         time.Now(),
		routes:        make(map[string]*routeStats),
		gatewayEvents: make(map[string]int64),
		transitions:   make(map[string]int64),
	}
}

func (m *Metrics) Start(route string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureRoute(route)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		route:   route,
		start:   time.Now(),
	}
}

func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.route, dur, err != nil)
}

func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// AddGatewayEvent counts a retry or breaker transition, keyed "<scope>.<kind>".
func (m *Metrics) AddGatewayEvent(scope, kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.gatewayEvents[scope+"."+kind]++
	m.mu.Unlock()
}

// AddOrderTransition counts an order reaching status.
func (m *Metrics) AddOrderTransition(status string) {
	if m == nil || status == "" {
		return
	}
	m.mu.Lock()
	m.transitions[status]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		UptimeSec:        int64(now.Sub(m.start).Seconds()),
		Routes:           make(map[string]RouteSnapshot, len(m.routes)),
		RateLimitWaits:   m.rateLimitWaits,
		RateLimitWaitMs:  int64(m.rateLimitWait / time.Millisecond),
		GatewayEvents:    make(map[string]int64, len(m.gatewayEvents)),
		OrderTransitions: make(map[string]int64, len(m.transitions)),
	}

	for route, stats := range m.routes {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Routes[route] = RouteSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}
	for key, n := range m.gatewayEvents {
		snap.GatewayEvents[key] = n
	}
	for status, n := range m.transitions {
		snap.OrderTransitions[status] = n
	}

	if !m.lifecycle.shutdownAt.IsZero() {
		snap.Lifecycle = &LifecycleSnapshot{
			ShutdownAt:         m.lifecycle.shutdownAt,
			InFlightAtShutdown: m.lifecycle.inflight,
		}
	}

	return snap
}

// InFlight returns the number of calls that have started but not ended.
func (m *Metrics) InFlight() int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, stats := range m.routes {
		n += stats.inFlight
	}
	return n
}

func (m *Metrics) ensureRoute(route string) *routeStats {
	stats, ok := m.routes[route]
	if !ok {
		stats = &routeStats{}
		m.routes[route] = stats
	}
	return stats
}

func (m *Metrics) finish(route string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureRoute(route)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}

func (m *Metrics) MarkShutdown(inflight int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lifecycle.shutdownAt = time.Now()
	m.lifecycle.inflight = inflight
	m.mu.Unlock()
}
