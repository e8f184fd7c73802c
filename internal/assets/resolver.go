package assets

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
	"server/internal/storage"
)

// ObjectReader is the slice of the object store the resolver needs.
type ObjectReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Resolver fetches the raw bytes of uploaded reference assets. Each job
// resolves its references once; there is no caching layer.
type Resolver struct {
	assets domain.AssetRepository
	store  ObjectReader
}

// NewResolver constructs a Resolver over the asset table and object store.
func NewResolver(assetRepo domain.AssetRepository, store ObjectReader) *Resolver {
	return &Resolver{assets: assetRepo, store: store}
}

// Resolve returns the bytes of the asset with the given id. A missing asset
// record or a missing backing object both surface as domain.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, assetID string) ([]byte, error) {
	asset, err := r.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, err)
	}
	data, err := r.store.Read(ctx, asset.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("asset %s object %s: %w", assetID, asset.Path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("asset %s object %s: %w", assetID, asset.Path, err)
	}
	return data, nil
}
