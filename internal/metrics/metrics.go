package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var runStates = []string{"stopped", "starting", "running", "stopping"}

// Metrics holds the manager's Prometheus collectors on a dedicated
// registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	state          *prometheus.GaugeVec
	uptime         prometheus.GaugeFunc
	consoleLines   prometheus.Counter
	restarts       prometheus.Counter
	unexpectedExit prometheus.Counter
	pluginInstalls *prometheus.CounterVec
	wsClients      prometheus.GaugeFunc
	cpuPercent     prometheus.Gauge
	memoryRSS      prometheus.Gauge
}

// New builds the collector set. uptimeFn reports the running child's
// uptime in seconds (zero when stopped); clientsFn reports connected
// WebSocket clients.
func New(uptimeFn func() float64, clientsFn func() float64) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "minecraft_server_state",
			Help: "Current supervisor state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		uptime: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "minecraft_server_uptime_seconds",
			Help: "Seconds since the server process started, 0 when not running",
		}, uptimeFn),
		consoleLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minecraft_console_lines_total",
			Help: "Console lines relayed from the server process",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minecraft_server_restarts_total",
			Help: "Completed restart operations",
		}),
		unexpectedExit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minecraft_server_unexpected_exits_total",
			Help: "Server process exits that were not operator-initiated",
		}),
		pluginInstalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minecraft_plugin_installs_total",
			Help: "Plugin install jobs by outcome",
		}, []string{"status"}),
		wsClients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "minecraft_websocket_clients",
			Help: "Connected console WebSocket clients",
		}, clientsFn),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minecraft_process_cpu_percent",
			Help: "CPU usage of the server process",
		}),
		memoryRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minecraft_process_memory_rss_bytes",
			Help: "Resident memory of the server process",
		}),
	}

	registry.MustRegister(m.state, m.uptime, m.consoleLines, m.restarts,
		m.unexpectedExit, m.pluginInstalls, m.wsClients, m.cpuPercent, m.memoryRSS)

	m.SetState("stopped")
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState marks the given state active and clears the others.
func (m *Metrics) SetState(state string) {
	for _, s := range runStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.state.WithLabelValues(s).Set(value)
	}
}

func (m *Metrics) IncConsoleLines()    { m.consoleLines.Inc() }
func (m *Metrics) IncRestarts()        { m.restarts.Inc() }
func (m *Metrics) IncUnexpectedExits() { m.unexpectedExit.Inc() }
func (m *Metrics) IncPluginInstall(status string) {
	m.pluginInstalls.WithLabelValues(status).Inc()
}

// SetProcessUsage records the sampled resource usage of the child.
func (m *Metrics) SetProcessUsage(cpuPercent float64, rssBytes uint64) {
	m.cpuPercent.Set(cpuPercent)
	m.memoryRSS.Set(float64(rssBytes))
}
