package service

import (
	"context"
	"fmt"

	"procurement/internal/model"

	"github.com/google/uuid"
)

// CatalogCounter counts how many of the given ids exist in a catalog.
type CatalogCounter interface {
	CountByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ReferenceValidationGateway verifies that every product/unit id referenced
// by request lines exists in the respective catalog. The check is a batch
// count against the distinct id set; it reports the entity kind only, never
// which specific id is missing.
type ReferenceValidationGateway struct {
	products CatalogCounter
	units    CatalogCounter
}

func NewReferenceValidationGateway(products, units CatalogCounter) *ReferenceValidationGateway {
	return &ReferenceValidationGateway{products: products, units: units}
}

func (g *ReferenceValidationGateway) EnsureProductsExist(ctx context.Context, ids []uuid.UUID) error {
	return g.ensureExist(ctx, g.products, "product", ids)
}

func (g *ReferenceValidationGateway) EnsureUnitsExist(ctx context.Context, ids []uuid.UUID) error {
	return g.ensureExist(ctx, g.units, "unit", ids)
}

func (g *ReferenceValidationGateway) ensureExist(ctx context.Context, catalog CatalogCounter, kind string, ids []uuid.UUID) error {
	distinct := dedupeIDs(ids)
	if len(distinct) == 0 {
		return nil
	}

	count, err := catalog.CountByIDs(ctx, distinct)
	if err != nil {
		return fmt.Errorf("failed to count existing %ss: %w", kind, err)
	}
	if count != int64(len(distinct)) {
		return &model.ReferenceNotFoundError{Kind: kind}
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	distinct := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	return distinct
}
