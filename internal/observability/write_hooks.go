package observability

import "time"

// WriteHooks reports aggregate write transactions into Metrics.
type WriteHooks struct {
	M *Metrics
}

func (h WriteHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.M.ObserveWriteOperation(name, status, dur)
}

func (h WriteHooks) IncRetry(name string) {
	h.M.IncWriteRetry(name)
}
