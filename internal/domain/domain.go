package domain

import "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"

type Namespace = namespaces.Namespace
type MergeOperation = namespaces.MergeOperation
type FallbackOperation = namespaces.FallbackOperation
type FallbackItem = namespaces.FallbackItem
type EventLogEntry = namespaces.EventLogEntry
type NamespaceHealth = namespaces.NamespaceHealth
type NamespaceStats = namespaces.NamespaceStats
type GlobalStats = namespaces.GlobalStats
type Tombstone = namespaces.Tombstone
type ListFilter = namespaces.ListFilter
type JobResult = namespaces.JobResult
