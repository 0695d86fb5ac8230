package repository

import (
	"context"
	"fmt"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

type ProfileRepository struct {
	store docstore.Store
	cache cache.Cache
}

func NewProfileRepository(store docstore.Store, c cache.Cache) *ProfileRepository {
	return &ProfileRepository{store: store, cache: c}
}

// Create stores the profile captured at sign-up under the auth provider's user id.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.UserProfile) error {
	fields, err := docstore.Fields(p)
	if err != nil {
		return err
	}
	fields["created_at"] = docstore.ServerTimestamp
	fields["updated_at"] = docstore.ServerTimestamp

	if err := r.store.Set(ctx, docstore.UserProfiles, p.ID, fields); err != nil {
		return fmt.Errorf("create profile %s: %w", p.ID, err)
	}
	forget(ctx, r.cache, cache.ProfileKey(p.ID))
	return nil
}

// GetByID returns domain.ErrNotFound when the user has no profile.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	return readThrough(ctx, r.cache, cache.ProfileKey(id), func() (*domain.UserProfile, error) {
		doc, err := r.store.Get(ctx, docstore.UserProfiles, id)
		if err != nil {
			return nil, fmt.Errorf("get profile %s: %w", id, err)
		}
		var p domain.UserProfile
		if err := doc.Decode(&p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}
