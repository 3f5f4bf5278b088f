package ports

// Metrics records workflow outcomes. Outcome is "success" or a domain.FailureKind value.
type Metrics interface {
	ObserveOutcome(operation, outcome string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveOutcome(string, string) {}
