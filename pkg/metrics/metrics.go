// Package metrics defines the backend-neutral metrics surface used by services.
package metrics

// Metric names emitted by the join service.
const (
	JoinRequestsTotal   = "join_requests_total"
	JoinStepsTotal      = "join_steps_total"
	JoinDurationSeconds = "join_duration_seconds"
	JoinOutputRows      = "join_output_rows"
)

// Labels are metric dimensions, for example {"operation": "join", "status": "ok"}.
type Labels map[string]string

// Backend records counters and histogram samples.
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards every metric.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
