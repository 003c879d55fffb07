package metrics

import "time"

// Recorder receives operational counters and latencies from the services.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
