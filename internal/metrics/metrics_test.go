package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func testMetrics() *Metrics {
	return New(func() float64 { return 42 }, func() float64 { return 2 })
}

func TestSetStateExposesSingleActiveState(t *testing.T) {
	m := testMetrics()
	m.SetState("running")

	body := scrape(t, m)
	if !strings.Contains(body, `minecraft_server_state{state="running"} 1`) {
		t.Error("expected running state to be 1")
	}
	if !strings.Contains(body, `minecraft_server_state{state="stopped"} 0`) {
		t.Error("expected stopped state to be 0")
	}
}

func TestCountersAndCallbacks(t *testing.T) {
	m := testMetrics()
	m.IncConsoleLines()
	m.IncConsoleLines()
	m.IncRestarts()
	m.IncPluginInstall("complete")
	m.SetProcessUsage(12.5, 1024)

	body := scrape(t, m)
	for _, want := range []string{
		"minecraft_console_lines_total 2",
		"minecraft_server_restarts_total 1",
		`minecraft_plugin_installs_total{status="complete"} 1`,
		"minecraft_server_uptime_seconds 42",
		"minecraft_websocket_clients 2",
		"minecraft_process_cpu_percent 12.5",
		"minecraft_process_memory_rss_bytes 1024",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	if recorder.Code != 200 {
		t.Fatalf("scrape returned %d", recorder.Code)
	}
	return recorder.Body.String()
}
