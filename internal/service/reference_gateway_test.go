package service

import (
	"context"
	"fmt"
	"testing"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog counts how many of the asked-for ids it knows about.
type fakeCatalog struct {
	known    map[uuid.UUID]bool
	lastIDs  []uuid.UUID
	countErr error
	calls    int
}

func (c *fakeCatalog) CountByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	c.calls++
	c.lastIDs = ids
	if c.countErr != nil {
		return 0, c.countErr
	}
	var count int64
	for _, id := range ids {
		if c.known[id] {
			count++
		}
	}
	return count, nil
}

func newFakeCatalog(ids ...uuid.UUID) *fakeCatalog {
	known := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &fakeCatalog{known: known}
}

func TestEnsureProductsExistAllKnown(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	products := newFakeCatalog(a, b)
	gateway := NewReferenceValidationGateway(products, newFakeCatalog())

	err := gateway.EnsureProductsExist(context.Background(), []uuid.UUID{a, b})

	require.NoError(t, err)
}

func TestEnsureProductsExistDeduplicatesBeforeCounting(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	products := newFakeCatalog(a, b)
	gateway := NewReferenceValidationGateway(products, newFakeCatalog())

	err := gateway.EnsureProductsExist(context.Background(), []uuid.UUID{a, a, b, a})

	require.NoError(t, err)
	assert.Len(t, products.lastIDs, 2)
}

func TestEnsureProductsExistReportsKindOnly(t *testing.T) {
	a := uuid.New()
	gateway := NewReferenceValidationGateway(newFakeCatalog(a), newFakeCatalog())

	err := gateway.EnsureProductsExist(context.Background(), []uuid.UUID{a, uuid.New()})

	var refErr *model.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "product", refErr.Kind)
	// The message names the kind but never the missing id.
	assert.NotContains(t, err.Error(), a.String())
}

func TestEnsureUnitsExistMissing(t *testing.T) {
	gateway := NewReferenceValidationGateway(newFakeCatalog(), newFakeCatalog())

	err := gateway.EnsureUnitsExist(context.Background(), []uuid.UUID{uuid.New()})

	var refErr *model.ReferenceNotFoundError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "unit", refErr.Kind)
}

func TestEnsureExistEmptySetSkipsCatalog(t *testing.T) {
	products := newFakeCatalog()
	gateway := NewReferenceValidationGateway(products, newFakeCatalog())

	err := gateway.EnsureProductsExist(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, products.calls)
}

func TestEnsureExistWrapsCatalogError(t *testing.T) {
	products := newFakeCatalog()
	products.countErr = fmt.Errorf("connection refused")
	gateway := NewReferenceValidationGateway(products, newFakeCatalog())

	err := gateway.EnsureProductsExist(context.Background(), []uuid.UUID{uuid.New()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count existing products")
}
