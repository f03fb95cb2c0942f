package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the reserved identifier of the chain's base currency.
var NativeAsset = common.Address{}

// IsNativeAsset returns whether the given identifier refers to the native
// currency.
func IsNativeAsset(asset common.Address) bool {
	return asset == NativeAsset
}

// AssetRepository is the abstraction for any kind of database intended to
// persist the registry of supported tokens. The registry is append-only.
type AssetRepository interface {
	// AddAsset adds the given token to the registry and returns whether it was
	// not already present.
	AddAsset(ctx context.Context, asset common.Address) (bool, error)
	// IsSupportedAsset returns whether the given token is in the registry.
	IsSupportedAsset(ctx context.Context, asset common.Address) (bool, error)
	// GetAllAssets returns the registered tokens in insertion order.
	GetAllAssets(ctx context.Context) ([]common.Address, error)
}
