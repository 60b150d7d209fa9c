package services

import (
	"context"

	"github.com/google/uuid"
)

type MergeInput struct {
	OperationID          uuid.UUID
	OperationType        string
	NamespaceID          uuid.UUID
	OwnerID              string
	SourceCheckpointHash string
	VersionCount         int64
	CheckpointSizeBytes  int64
}

type MergeResult struct {
	TargetCheckpointHash string
	CheckpointSizeBytes  int64
}

// MergeExecutor performs the merge computation itself. It may be slow and may fail;
// the orchestration around it is what MergeService owns.
type MergeExecutor interface {
	Execute(ctx context.Context, in MergeInput) (MergeResult, error)
}

type MergeExecutorFunc func(ctx context.Context, in MergeInput) (MergeResult, error)

func (f MergeExecutorFunc) Execute(ctx context.Context, in MergeInput) (MergeResult, error) {
	return f(ctx, in)
}

type FallbackInput struct {
	OperationID           uuid.UUID
	NamespaceID           uuid.UUID
	OwnerID               string
	Reason                string
	FallbackVersion       string
	CurrentCheckpointHash string
	CheckpointSizeBytes   int64
}

type FallbackResult struct {
	CheckpointHash      string
	CheckpointSizeBytes int64
}

// FallbackExecutor restores a namespace to a known-good checkpoint.
type FallbackExecutor interface {
	Restore(ctx context.Context, in FallbackInput) (FallbackResult, error)
}

type FallbackExecutorFunc func(ctx context.Context, in FallbackInput) (FallbackResult, error)

func (f FallbackExecutorFunc) Restore(ctx context.Context, in FallbackInput) (FallbackResult, error) {
	return f(ctx, in)
}

// NewHashMergeExecutor returns the built-in executor: it derives the target checkpoint id
// from the source and keeps the recorded size.
func NewHashMergeExecutor(h *CheckpointHasher) MergeExecutor {
	return MergeExecutorFunc(func(ctx context.Context, in MergeInput) (MergeResult, error) {
		if err := ctx.Err(); err != nil {
			return MergeResult{}, err
		}
		return MergeResult{
			TargetCheckpointHash: h.MergedCheckpointHash(in.SourceCheckpointHash, in.OperationID),
			CheckpointSizeBytes:  in.CheckpointSizeBytes,
		}, nil
	})
}

// NewHashFallbackExecutor restores to the checkpoint id named by the fallback version.
func NewHashFallbackExecutor(h *CheckpointHasher) FallbackExecutor {
	return FallbackExecutorFunc(func(ctx context.Context, in FallbackInput) (FallbackResult, error) {
		if err := ctx.Err(); err != nil {
			return FallbackResult{}, err
		}
		return FallbackResult{
			CheckpointHash:      h.FallbackCheckpointHash(in.NamespaceID, in.FallbackVersion),
			CheckpointSizeBytes: in.CheckpointSizeBytes,
		}, nil
	})
}
