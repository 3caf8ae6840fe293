package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_customRegistry demonstrates using an isolated Prometheus registry.
func Example_customRegistry() {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.TasksScheduled.WithLabelValues("jobs", "cron").Add(3)
	m.Wakeups.WithLabelValues("jobs", "interrupt").Inc()

	fmt.Println(testutil.ToFloat64(m.TasksScheduled.WithLabelValues("jobs", "cron")))
	fmt.Println(testutil.ToFloat64(m.Wakeups.WithLabelValues("jobs", "interrupt")))

	// Output:
	// 3
	// 1
}

// Example_config shows how a Config resolves to a Registry.
func Example_config() {
	disabled := Config{}
	fmt.Println(disabled.Resolve() == nil)

	enabled := Config{Enabled: true, Registry: prometheus.NewRegistry()}
	fmt.Println(enabled.Resolve() != nil)

	fmt.Println(DefaultConfig().Resolve() == DefaultRegistry)

	// Output:
	// true
	// true
	// true
}
