// Package aggregates owns the transaction boundary for orchestrator writes.
//
// Every namespace or merge-operation mutation runs through Base.Write together with the
// event-log entry that describes it, so neither can commit without the other.
package aggregates
