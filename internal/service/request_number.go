package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"procurement/internal/model"
)

const (
	// RequestNumberPrefix prefixes every human-facing request number.
	RequestNumberPrefix = "PR-"

	maxRequestSequence  = 999999
	maxAllocateAttempts = 100
)

// RequestNumberStore is the narrow persistence surface the allocator reads.
type RequestNumberStore interface {
	MaxRequestNo(ctx context.Context, prefix string) (string, error)
	ExistsByRequestNo(ctx context.Context, requestNo string) (bool, error)
}

// RequestNumberAllocator hands out sequential PR-###### numbers using an
// optimistic read-then-check loop. It is not linearizable: two concurrent
// allocations can observe the same maximum and propose the same candidate.
// The unique index on request_no is the final arbiter; the bounded retry
// absorbs limited interleaving. Swappable for a real sequence later without
// touching the service layer.
type RequestNumberAllocator struct {
	store RequestNumberStore
}

func NewRequestNumberAllocator(store RequestNumberStore) *RequestNumberAllocator {
	return &RequestNumberAllocator{store: store}
}

// Allocate returns the next unused request number. Fails with
// ErrSequenceExhausted once the 6-digit space is used up, or with
// ErrAllocationFailed when every attempt collided with a concurrent writer.
func (a *RequestNumberAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		max, err := a.store.MaxRequestNo(ctx, RequestNumberPrefix)
		if err != nil {
			return "", fmt.Errorf("failed to read max request number: %w", err)
		}

		next := parseSequence(max) + 1
		if next > maxRequestSequence {
			return "", model.ErrSequenceExhausted
		}

		candidate := fmt.Sprintf("%s%06d", RequestNumberPrefix, next)

		exists, err := a.store.ExistsByRequestNo(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check request number %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", model.ErrAllocationFailed
}

// parseSequence extracts the trailing numeric segment of a request number.
// Missing or malformed input counts as zero.
func parseSequence(requestNo string) int {
	digits := strings.TrimPrefix(requestNo, RequestNumberPrefix)
	if digits == "" || digits == requestNo {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
