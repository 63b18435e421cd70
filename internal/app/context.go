package app

import (
	"context"
	"errors"
	"fmt"

	"storeops/internal/config"
	"storeops/internal/repo"
)

// ResolveConfig returns the stored workspace config, seeding the default one
// on first use.
func ResolveConfig(ctx context.Context, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed := config.Default()
	if err := r.UpsertConfig(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return seed, nil
}
