package inmemory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type assetRepositoryImpl struct {
	m *RepoManager
}

func (r *assetRepositoryImpl) AddAsset(
	ctx context.Context, asset common.Address,
) (bool, error) {
	added := false
	err := r.m.write(ctx, func(s *state) error {
		for _, a := range s.assets {
			if a == asset {
				return nil
			}
		}
		s.assets = append(s.assets, asset)
		added = true
		return nil
	})
	return added, err
}

func (r *assetRepositoryImpl) IsSupportedAsset(
	ctx context.Context, asset common.Address,
) (bool, error) {
	found := false
	err := r.m.read(ctx, func(s *state) error {
		for _, a := range s.assets {
			if a == asset {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *assetRepositoryImpl) GetAllAssets(
	ctx context.Context,
) ([]common.Address, error) {
	assets := make([]common.Address, 0)
	err := r.m.read(ctx, func(s *state) error {
		assets = append(assets, s.assets...)
		return nil
	})
	return assets, err
}
