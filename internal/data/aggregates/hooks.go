package aggregates

import (
	"strings"
	"time"
)

// Hooks captures write-path observability events.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncRetry(string)                                {}

// OperationObserver is satisfied by observability.Metrics.
type OperationObserver interface {
	ObserveWriteOperation(op, status string, dur time.Duration)
	IncWriteRetry(op string)
}

type observerHooks struct {
	obs OperationObserver
}

func NewObserverHooks(obs OperationObserver) Hooks {
	if obs == nil {
		return noopHooks{}
	}
	return &observerHooks{obs: obs}
}

func (h *observerHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.obs.ObserveWriteOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}

func (h *observerHooks) IncRetry(name string) {
	h.obs.IncWriteRetry(strings.TrimSpace(name))
}
